package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"filechain/internal/auth"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:5000"
	DefaultDBFileName  = ".filechain.db"
	DefaultDataDirName = ".filechain-data"
	DefaultLogLevel    = "info"

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024
	DefaultBcryptCost               = 10
	DefaultCacheTTLSeconds          = 60
	DefaultGCBatchSize              = 500

	configFileName = ".filechain.toml"

	configDirEnvKey          = "FILECHAIN_CONFIG_DIR"
	trustProjectConfigEnvKey = "FILECHAIN_TRUST_PROJECT_CONFIG"
	apiURLEnvKey             = "FILECHAIN_API_URL"
	dbPathEnvKey             = "FILECHAIN_DB"
	dataDirEnvKey            = "FILECHAIN_DATA_DIR"
	logLevelEnvKey           = "FILECHAIN_LOG_LEVEL"
	redisAddrEnvKey          = "FILECHAIN_REDIS_ADDR"
	maxUploadBytesEnvKey     = "FILECHAIN_MAX_UPLOAD_BYTES"
	adminTokenEnvKey         = "FILECHAIN_ADMIN_TOKEN"
)

// UploadConfig bounds multipart upload handling.
type UploadConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// CredentialConfig controls how upload credentials are fingerprinted.
type CredentialConfig struct {
	BcryptCost int `toml:"bcrypt_cost"`
}

// CacheConfig enables the redis listing cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// GCConfig tunes the orphan sweep.
type GCConfig struct {
	BatchSize int `toml:"batch_size"`
}

// Config defines runtime configuration for filechain.
type Config struct {
	APIURL      string           `toml:"api_url"`
	DBPath      string           `toml:"db_path"`
	DataDir     string           `toml:"data_dir"`
	LogLevel    string           `toml:"log_level"`
	Uploads     UploadConfig     `toml:"uploads"`
	Credentials CredentialConfig `toml:"credentials"`
	Cache       CacheConfig      `toml:"cache"`
	GC          GCConfig         `toml:"gc"`

	// AdminToken is read from the environment only.
	AdminToken               string `toml:"-"`
	TrustedProjectConfigPath string `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Uploads: UploadConfig{
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Credentials: CredentialConfig{BcryptCost: DefaultBcryptCost},
		Cache:       CacheConfig{TTLSeconds: DefaultCacheTTLSeconds},
		GC:          GCConfig{BatchSize: DefaultGCBatchSize},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"data_dir",
	"log_level",
	"uploads.max_upload_bytes",
	"uploads.multipart_max_memory",
	"credentials.bcrypt_cost",
	"cache.redis_addr",
	"cache.ttl_seconds",
	"gc.batch_size",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "data_dir":
		return c.DataDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "uploads.max_upload_bytes":
		return strconv.FormatInt(c.Uploads.MaxUploadBytes, 10), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "credentials.bcrypt_cost":
		return strconv.Itoa(c.Credentials.BcryptCost), nil
	case "cache.redis_addr":
		return c.Cache.RedisAddr, nil
	case "cache.ttl_seconds":
		return strconv.Itoa(c.Cache.TTLSeconds), nil
	case "gc.batch_size":
		return strconv.Itoa(c.GC.BatchSize), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if v := os.Getenv(apiURLEnvKey); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(dbPathEnvKey); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(dataDirEnvKey); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(logLevelEnvKey)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(redisAddrEnvKey)); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if raw := strings.TrimSpace(os.Getenv(maxUploadBytesEnvKey)); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			cfg.Uploads.MaxUploadBytes = parsed
		}
	}
	cfg.AdminToken = strings.TrimSpace(os.Getenv(adminTokenEnvKey))

	if cfg.DBPath == "" || cfg.DataDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			if cfg.DBPath == "" {
				cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
			}
			if cfg.DataDir == "" {
				cfg.DataDir = filepath.Join(cwd, DefaultDataDirName)
			}
		}
	}

	cfg.normalizeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the server could start with but not serve.
func (c *Config) Validate() error {
	if _, err := auth.ValidateCost(c.Credentials.BcryptCost); err != nil {
		return fmt.Errorf("credentials.bcrypt_cost: %w", err)
	}
	return nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_upload_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "credentials.bcrypt_cost":
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", key)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		if _, err := auth.ValidateCost(parsed); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return parsed, nil
	case "cache.ttl_seconds", "gc.batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "log_level":
		normalized := strings.ToLower(value)
		switch normalized {
		case "debug", "info", "warn", "warning", "error":
			return normalized, nil
		}
		return nil, fmt.Errorf("log_level must be one of debug, info, warn, error")
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Uploads.MaxUploadBytes <= 0 {
		c.Uploads.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.Credentials.BcryptCost <= 0 {
		c.Credentials.BcryptCost = DefaultBcryptCost
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = DefaultCacheTTLSeconds
	}
	if c.GC.BatchSize <= 0 {
		c.GC.BatchSize = DefaultGCBatchSize
	}
}
