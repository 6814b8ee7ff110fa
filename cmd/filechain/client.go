package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"filechain/internal/api"
	"filechain/internal/config"
)

const (
	pingTimeout       = 500 * time.Millisecond
	startTimeout      = 3 * time.Second
	startPollInterval = 100 * time.Millisecond
	stopTimeout       = 5 * time.Second
	serverLogFileName = "srv.log"
)

// localServer is a `filechain srv` process started for the duration of one
// client command. Its output goes to srv.log under the data directory.
type localServer struct {
	cmd     *exec.Cmd
	logFile *os.File
	logPath string
}

// withClient runs fn against the configured API, starting a local server
// first when the URL is a loopback address and nothing answers there.
func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	local, err := ensureServer(cfg, client)
	if err != nil {
		return err
	}
	defer local.stop()
	return fn(client)
}

func ensureServer(cfg *config.Config, client *api.Client) (*localServer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	err := client.Ping(ctx)
	cancel()
	if err == nil {
		return nil, nil
	}
	if !isLoopbackAPIURL(cfg.APIURL) {
		return nil, fmt.Errorf("filechain server at %s is unreachable: %w", cfg.APIURL, err)
	}

	local, err := startLocalServer(cfg)
	if err != nil {
		return nil, err
	}
	if err := waitForServer(client, startTimeout); err != nil {
		local.stop()
		return nil, fmt.Errorf("%w (see %s)", err, local.logPath)
	}
	return local, nil
}

func startLocalServer(cfg *config.Config) (*localServer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logPath := filepath.Join(cfg.DataDir, serverLogFileName)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(), localServerEnv(cfg)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("start local server: %w", err)
	}
	return &localServer{cmd: cmd, logFile: logFile, logPath: logPath}, nil
}

// localServerEnv pins the paths this CLI resolved, which may be derived from
// its working directory, so the child serves the same ledger and content.
func localServerEnv(cfg *config.Config) []string {
	env := []string{
		"FILECHAIN_DB=" + cfg.DBPath,
		"FILECHAIN_DATA_DIR=" + cfg.DataDir,
		"FILECHAIN_API_URL=" + cfg.APIURL,
	}
	if cfg.LogLevel != "" {
		env = append(env, logLevelEnvKey+"="+cfg.LogLevel)
	}
	return env
}

// stop interrupts the server so it can close the ledger cleanly, killing it
// if it has not exited after stopTimeout.
func (l *localServer) stop() {
	if l == nil || l.cmd == nil || l.cmd.Process == nil {
		return
	}
	if err := l.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = l.cmd.Process.Kill()
	}

	done := make(chan struct{})
	go func() {
		_ = l.cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopTimeout):
		_ = l.cmd.Process.Kill()
		<-done
	}
	if l.logFile != nil {
		_ = l.logFile.Close()
	}
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*startPollInterval)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			// Something answered on the port but it is not a filechain server.
			return err
		}
		time.Sleep(startPollInterval)
	}
	return errors.New("local filechain server did not start in time")
}

func isLoopbackAPIURL(apiURL string) bool {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
