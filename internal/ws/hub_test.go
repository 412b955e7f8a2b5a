package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/types"
	wsHub "github.com/hyperengineering/autoroi/internal/ws"
)

// --- helpers ----------------------------------------------------------------

func output(snapshotID string, processes int) *engine.Output {
	res := &types.ROIResults{SnapshotID: snapshotID, TimeHorizonMonths: 12}
	for i := 0; i < processes; i++ {
		res.ProcessResults = append(res.ProcessResults, types.ProcessResult{ProcessID: "p"})
	}
	return &engine.Output{
		Results:  res,
		Cashflow: make([]types.CashflowData, 12),
		Matrix:   []types.MatrixProcess{},
	}
}

func startHub(t *testing.T, latest func() *engine.Output) (string, *wsHub.Hub, context.CancelFunc) {
	t.Helper()

	hub := wsHub.New(latest, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub, cancel
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func waitForClients(t *testing.T, hub *wsHub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesLatestResults(t *testing.T) {
	wsURL, _, _ := startHub(t, func() *engine.Output { return output("snap-1", 2) })

	conn := dial(t, wsURL)
	m := readMessage(t, conn)

	if m.Event != wsHub.EventResults {
		t.Errorf("event = %q, want %q", m.Event, wsHub.EventResults)
	}
	if m.Reason != "connected" {
		t.Errorf("reason = %q, want connected", m.Reason)
	}
	if m.Data.Results == nil || m.Data.Results.SnapshotID != "snap-1" {
		t.Fatalf("results = %+v", m.Data.Results)
	}
	if len(m.Data.Results.ProcessResults) != 2 || len(m.Data.Cashflow) != 12 {
		t.Errorf("payload = %d processes, %d months", len(m.Data.Results.ProcessResults), len(m.Data.Cashflow))
	}
}

func TestHub_Publish_BroadcastsToAllClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, nil)
	a := dial(t, wsURL)
	b := dial(t, wsURL)
	waitForClients(t, hub, 2)

	hub.Publish(controller.Update{Reason: "horizon changed", Output: output("snap-2", 1)})

	for _, conn := range []*websocket.Conn{a, b} {
		m := readMessage(t, conn)
		if m.Reason != "horizon changed" || m.Data.Results.SnapshotID != "snap-2" {
			t.Errorf("message = %+v", m)
		}
	}
	if hub.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", hub.Sent())
	}
}

func TestHub_SubscribedToController(t *testing.T) {
	// Given a hub subscribed to a controller
	wsURL, hub, _ := startHub(t, nil)
	ctrl := controller.New(controller.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	defer ctrl.Subscribe(hub.Publish)()
	conn := dial(t, wsURL)
	waitForClients(t, hub, 1)

	// When the controller accepts a computation
	state := controller.State{
		DataReadyForROI:          true,
		CostClassificationLoaded: true,
		Classification:           types.EmptyClassification(),
		Defaults:                 types.StandardDefaults(),
	}
	data := types.Dataset{Processes: []types.Process{{ID: "p1", Name: "Invoice", TaskVolume: 100, TimePerTask: 5, AutomationCoverage: 50}}}
	if res := ctrl.ScheduleROI("test", state, data, 12); res == nil {
		t.Fatal("ScheduleROI() = nil")
	}

	// Then the client receives it
	m := readMessage(t, conn)
	if m.Reason != "test" || m.Data.Results == nil || len(m.Data.Results.ProcessResults) != 1 {
		t.Errorf("message = %+v", m)
	}
}

func TestHub_NoLatest_NoImmediateMessage(t *testing.T) {
	wsURL, hub, _ := startHub(t, func() *engine.Output { return nil })
	conn := dial(t, wsURL)
	waitForClients(t, hub, 1)

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("received a message with no results available")
	}
}

func TestHub_ClientDisconnect_Unregisters(t *testing.T) {
	wsURL, hub, _ := startHub(t, nil)
	conn := dial(t, wsURL)
	waitForClients(t, hub, 1)

	conn.Close()

	waitForClients(t, hub, 0)
}

func TestHub_Shutdown_ClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, nil)
	conn := dial(t, wsURL)
	waitForClients(t, hub, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after hub shutdown")
	}
	if hub.Count() != 0 {
		t.Errorf("Count() = %d after shutdown, want 0", hub.Count())
	}
}
