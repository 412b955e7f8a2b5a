//go:build e2e

package e2e

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// autoroiServer manages a running autoroi server process.
type autoroiServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
}

// startAutoroi launches the autoroi binary and waits for it to become healthy.
// The server is configured entirely via environment variables.
func startAutoroi(t *testing.T, extraEnv ...string) *autoroiServer {
	t.Helper()

	if autoroiBin == "" {
		t.Skip("autoroi binary not available (set AUTOROI_BIN or add to PATH)")
	}

	dataDir := t.TempDir()
	port := freePort(t)
	logFile := filepath.Join(dataDir, "autoroi.log")

	cmd := exec.Command(autoroiBin, "serve")
	cmd.Dir = dataDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("AUTOROI_PORT=%d", port),
		"AUTOROI_DB_PATH="+filepath.Join(dataDir, "autoroi.db"),
		"AUTOROI_API_KEY="+testAPIKey,
		"AUTOROI_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start autoroi: %v", err)
	}

	s := &autoroiServer{
		cmd:     cmd,
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		logFile: logFile,
	}
	t.Cleanup(func() {
		s.stop()
		lf.Close()
		if t.Failed() {
			if data, err := os.ReadFile(logFile); err == nil {
				t.Logf("server log:\n%s", data)
			}
		}
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("autoroi not healthy: %v", err)
	}
	return s
}

func (s *autoroiServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *autoroiServer) baseURL() string {
	return "http://" + s.address
}

func (s *autoroiServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("autoroi not healthy after %s", timeout)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
