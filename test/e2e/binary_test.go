//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/autoroi/internal/client"
	"github.com/hyperengineering/autoroi/internal/types"
)

func TestBinary_ServeSessionLifecycle(t *testing.T) {
	srv := startAutoroi(t)

	storage := client.New(srv.baseURL(), testAPIKey, 5*time.Second)
	if err := storage.SaveData(context.Background(), "acme", types.Dataset{
		Groups:    []types.GroupDefaults{},
		Processes: []types.Process{process("p1", "Invoice entry", 400, 5000)},
	}); err != nil {
		t.Fatalf("SaveData() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.baseURL()+"/api/v1/session/organization",
		strings.NewReader(`{"organizationId": "acme"}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("select organization: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select organization: status = %d", resp.StatusCode)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodGet, srv.baseURL()+"/api/v1/session/results", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				var out types.ComputeResponse
				if err := json.Unmarshal(body, &out); err != nil {
					t.Fatalf("decode results: %v", err)
				}
				if len(out.Results.ProcessResults) != 1 {
					t.Errorf("process results = %d, want 1", len(out.Results.ProcessResults))
				}
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("no session results before timeout")
}

func TestBinary_WatchedDatasetImported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.json")
	if err := os.WriteFile(path, []byte(`{"groups": [], "processes": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := startAutoroi(t, "AUTOROI_WATCH_DATASET="+path, "AUTOROI_WATCH_ORG=watched")

	dataset := `{"groups": [], "processes": [{"id": "w1", "name": "Watched", "taskVolume": 50, "timePerTask": 5}]}`
	if err := os.WriteFile(path, []byte(dataset), 0o644); err != nil {
		t.Fatal(err)
	}

	storage := client.New(srv.baseURL(), testAPIKey, 5*time.Second)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ds, err := storage.LoadData(context.Background(), "watched"); err == nil && len(ds.Processes) == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("watched dataset was not imported")
}
