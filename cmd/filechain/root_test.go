package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filechain/internal/config"
)

func TestRootCommandTree(t *testing.T) {
	cfg := config.Default()
	root := newRootCmd(&cfg)

	for _, path := range [][]string{
		{"srv"},
		{"upload"},
		{"download"},
		{"files"},
		{"transactions"},
		{"show"},
		{"tx"},
		{"admin", "gc"},
		{"admin", "verify"},
		{"admin", "export"},
		{"migrate"},
		{"config", "get"},
		{"config", "set"},
		{"config", "list"},
		{"info"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd == nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("expected command %v, got %v (%v)", path, cmd, err)
		}
	}
}

func TestConfigGetCommand(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	buf := captureStdout(t)
	cfg := config.Default()
	cfg.APIURL = "http://127.0.0.1:5999"

	root := newRootCmd(&cfg)
	root.SetArgs([]string{"config", "get", "api_url"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "http://127.0.0.1:5999" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestConfigGetRejectsUnknownKey(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	captureStdout(t)
	cfg := config.Default()

	root := newRootCmd(&cfg)
	root.SetArgs([]string{"config", "get", "nope"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestUploadRequiresOwnerAndKey(t *testing.T) {
	t.Setenv(logLevelEnvKey, "")
	cfg := config.Default()

	root := newRootCmd(&cfg)
	root.SetArgs([]string{"upload", "report.pdf", "--user", "alice"})
	err := root.Execute()
	if err == nil || err.Error() != "--user and --key are required" {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func isolateCLIConfig(t *testing.T, contents string) {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{
		"FILECHAIN_API_URL", "FILECHAIN_DB", "FILECHAIN_DATA_DIR", "FILECHAIN_REDIS_ADDR",
		"FILECHAIN_MAX_UPLOAD_BYTES", "FILECHAIN_TRUST_PROJECT_CONFIG", logLevelEnvKey,
	} {
		t.Setenv(key, "")
	}
	t.Setenv("FILECHAIN_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, ".filechain.toml"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestRunExecutesCommand(t *testing.T) {
	isolateCLIConfig(t, "api_url = \"http://127.0.0.1:5123\"\n")
	buf := captureStdout(t)
	var stderr bytes.Buffer

	if code := run([]string{"config", "get", "api_url"}, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d (%s)", code, stderr.String())
	}
	if strings.TrimSpace(buf.String()) != "http://127.0.0.1:5123" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestRunRejectsUnusableConfig(t *testing.T) {
	isolateCLIConfig(t, "[credentials]\nbcrypt_cost = 2\n")
	var stderr bytes.Buffer

	if code := run([]string{"config", "get", "api_url"}, &stderr); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "credentials.bcrypt_cost") {
		t.Fatalf("expected the offending key in %q", stderr.String())
	}
}

func TestRunReportsCommandErrors(t *testing.T) {
	isolateCLIConfig(t, "")
	captureStdout(t)
	var stderr bytes.Buffer

	if code := run([]string{"config", "get", "nope"}, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "unknown key") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}
}
