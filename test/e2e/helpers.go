package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperengineering/autoroi/internal/api"
	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/metrics"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/ws"
)

const testAPIKey = "e2e-test-api-key"

// --- Stack Setup ---

// stack is one in-process server wired the way the serve command wires it.
type stack struct {
	server  *httptest.Server
	store   store.Store
	ctrl    *controller.Controller
	session *session.Session
	hub     *ws.Hub
}

// stackOption adjusts a stack before it starts.
type stackOption func(*stackConfig)

type stackConfig struct {
	fetcher func(store.Store) session.Fetcher
	horizon int
}

// withFetcher replaces the local store as the session's data source.
func withFetcher(f session.Fetcher) stackOption {
	return func(c *stackConfig) {
		c.fetcher = func(store.Store) session.Fetcher { return f }
	}
}

func newStack(t *testing.T, opts ...stackOption) *stack {
	t.Helper()

	cfg := &stackConfig{
		fetcher: func(s store.Store) session.Fetcher { return &session.StoreFetcher{Store: s} },
		horizon: 36,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "autoroi.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := controller.New(controller.Options{Logger: logger})
	sess := session.New(ctrl, cfg.fetcher(db), session.Options{
		Defaults:      types.StandardDefaults(),
		HorizonMonths: cfg.horizon,
		Logger:        logger,
	})
	hub := ws.New(sess.Latest, logger)
	unsubscribe := ctrl.Subscribe(hub.Publish)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	handler := api.NewHandler(db, testAPIKey, "e2e",
		api.WithSession(sess),
		api.WithStream(hub),
		api.WithMetrics(&metrics.Collector{Controller: ctrl, Store: db, Clients: hub}),
		api.WithComputeDefaults(types.StandardDefaults(), cfg.horizon),
	)
	srv := httptest.NewServer(api.NewRouter(handler))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		unsubscribe()
		db.Close()
	})

	return &stack{server: srv, store: db, ctrl: ctrl, session: sess, hub: hub}
}

// --- HTTP Helpers ---

func (s *stack) url(path string) string {
	return s.server.URL + path
}

// do sends an authenticated JSON request and returns the response with its body read.
func (s *stack) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.url(path), reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

// mustDo is do with a required status code.
func (s *stack) mustDo(t *testing.T, method, path string, body any, wantStatus int) []byte {
	t.Helper()
	resp, data := s.do(t, method, path, body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status = %d, want %d (%s)", method, path, resp.StatusCode, wantStatus, data)
	}
	return data
}

func (s *stack) selectOrganization(t *testing.T, orgID string) session.Status {
	t.Helper()
	data := s.mustDo(t, http.MethodPost, "/api/v1/session/organization",
		types.SelectOrganizationRequest{OrganizationID: orgID}, http.StatusOK)
	var st session.Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

// scrape fetches /metrics in the text exposition format.
func (s *stack) scrape(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(s.url("/metrics"))
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return string(data)
}

// --- WebSocket Helpers ---

func (s *stack) dialResults(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.url("/api/v1/session/ws"), "http")
	header := http.Header{"Authorization": []string{"Bearer " + testAPIKey}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients blocks until the hub has n registered clients.
func (s *stack) waitForClients(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.hub.Count() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub has %d clients, want %d", s.hub.Count(), n)
}

// readUntil reads result messages until cond holds or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, cond func(ws.Message) bool) ws.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set deadline: %v", err)
		}
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read message: %v", err)
		}
		if msg.Event == ws.EventResults && cond(msg) {
			return msg
		}
	}
}

// --- Fixtures ---

func process(id, name string, volume, upfront float64) types.Process {
	return types.Process{
		ID:                 id,
		Name:               name,
		TaskVolume:         volume,
		TimePerTask:        10,
		AutomationCoverage: 60,
		UpfrontCosts:       upfront,
	}
}

func saveRequest(orgID string, processes ...types.Process) types.SaveDataRequest {
	return types.SaveDataRequest{
		OrganizationID: orgID,
		Groups:         []types.GroupDefaults{},
		Processes:      processes,
	}
}

func processIDs(r *types.ROIResults) []string {
	ids := make([]string, len(r.ProcessResults))
	for i, p := range r.ProcessResults {
		ids[i] = p.ProcessID
	}
	return ids
}

func describe(r *types.ROIResults) string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("horizon=%d processes=%v npv=%.2f", r.TimeHorizonMonths, processIDs(r), r.NPV)
}
