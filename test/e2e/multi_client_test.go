package e2e

import (
	"net/http"
	"testing"

	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/ws"
)

// --- Fan-out to several presentation clients ---

func TestMultiClient_SameSnapshotToEveryClient(t *testing.T) {
	s := newStack(t)
	s.mustDo(t, http.MethodPost, "/data/save", saveRequest("acme",
		process("p1", "Invoice entry", 400, 5000),
		process("p2", "Vendor setup", 30, 20000),
	), http.StatusOK)

	a := s.dialResults(t)
	b := s.dialResults(t)
	s.waitForClients(t, 2)

	s.selectOrganization(t, "acme")

	ready := func(m ws.Message) bool { return m.Data.Results != nil && len(m.Data.Results.ProcessResults) == 2 }
	fromA := readUntil(t, a, ready)
	fromB := readUntil(t, b, ready)
	if fromA.Data.Results.SnapshotID != fromB.Data.Results.SnapshotID {
		t.Errorf("clients saw different snapshots: %s vs %s", describe(fromA.Data.Results), describe(fromB.Data.Results))
	}

	// A horizon change reaches both
	s.mustDo(t, http.MethodPut, "/api/v1/session/horizon", types.HorizonRequest{TimeHorizonMonths: 12}, http.StatusOK)
	horizon12 := func(m ws.Message) bool { return m.Data.Results != nil && m.Data.Results.TimeHorizonMonths == 12 }
	readUntil(t, a, horizon12)
	readUntil(t, b, horizon12)
}

func TestMultiClient_LateJoinerGetsLatest(t *testing.T) {
	s := newStack(t)
	s.mustDo(t, http.MethodPost, "/data/save", saveRequest("acme", process("p1", "Invoice entry", 400, 5000)), http.StatusOK)

	early := s.dialResults(t)
	s.waitForClients(t, 1)
	s.selectOrganization(t, "acme")
	first := readUntil(t, early, func(m ws.Message) bool { return m.Data.Results != nil })

	// A client connecting after the compute is sent the current results at once
	late := s.dialResults(t)
	got := readUntil(t, late, func(m ws.Message) bool { return m.Data.Results != nil })
	if got.Data.Results.SnapshotID != first.Data.Results.SnapshotID {
		t.Errorf("late joiner got %s, want %s", describe(got.Data.Results), describe(first.Data.Results))
	}
}

func TestMultiClient_DisconnectUnregisters(t *testing.T) {
	s := newStack(t)

	a := s.dialResults(t)
	s.dialResults(t)
	s.waitForClients(t, 2)

	a.Close()
	s.waitForClients(t, 1)
}
