package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/autoroi/internal/client"
	"github.com/hyperengineering/autoroi/internal/controller"
	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
)

// mockSession implements SessionService for handler unit tests.
type mockSession struct {
	mu          sync.Mutex
	status      session.Status
	latest      *engine.Output
	switchErr   error
	switched    []string
	horizon     int
	selection   []string
	orgDefaults map[string]types.GlobalDefaults
	reloads     int
}

func newMockSession() *mockSession {
	return &mockSession{orgDefaults: make(map[string]types.GlobalDefaults)}
}

func (m *mockSession) SwitchOrganization(ctx context.Context, orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switched = append(m.switched, orgID)
	if m.switchErr != nil {
		return m.switchErr
	}
	m.status.OrganizationID = orgID
	return nil
}

func (m *mockSession) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.OrganizationID == "" {
		return session.ErrNoOrganization
	}
	m.reloads++
	return nil
}

func (m *mockSession) SetHorizon(months int) error {
	if verr := validation.ValidateHorizon("timeHorizonMonths", months); verr != nil {
		return verr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.horizon = months
	m.status.HorizonMonths = months
	return nil
}

func (m *mockSession) SetSelection(ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if id == "missing" {
			return fmt.Errorf("%w: %s", session.ErrUnknownProcess, id)
		}
	}
	m.selection = ids
	return nil
}

func (m *mockSession) SetOrganizationDefaults(orgID string, d types.GlobalDefaults) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgDefaults[orgID] = d
}

func (m *mockSession) Latest() *engine.Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *mockSession) Status() session.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func TestSelectOrganization(t *testing.T) {
	ms := newMockSession()
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

	w := do(t, router, http.MethodPost, "/api/v1/session/organization", types.SelectOrganizationRequest{OrganizationID: "acme"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if st := decode[session.Status](t, w); st.OrganizationID != "acme" {
		t.Errorf("status org = %q, want acme", st.OrganizationID)
	}
}

func TestSelectOrganization_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		switchErr  error
		wantStatus int
	}{
		{"invalid id", types.SelectOrganizationRequest{OrganizationID: "Bad Org"}, nil, http.StatusUnprocessableEntity},
		{"invalid JSON", `{"organizationId": 7`, nil, http.StatusBadRequest},
		{"load failure", types.SelectOrganizationRequest{OrganizationID: "acme"}, fmt.Errorf("%w: timeout", client.ErrLoadFailed), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMockSession()
			ms.switchErr = tt.switchErr
			router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

			w := do(t, router, http.MethodPost, "/api/v1/session/organization", tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSetHorizon(t *testing.T) {
	ms := newMockSession()
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

	w := do(t, router, http.MethodPut, "/api/v1/session/horizon", types.HorizonRequest{TimeHorizonMonths: 60})
	if w.Code != http.StatusOK || ms.horizon != 60 {
		t.Errorf("status = %d, horizon = %d; want 200, 60", w.Code, ms.horizon)
	}

	w = do(t, router, http.MethodPut, "/api/v1/session/horizon", types.HorizonRequest{TimeHorizonMonths: 0})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero horizon: status = %d, want 422", w.Code)
	}
}

func TestSetSelection(t *testing.T) {
	ms := newMockSession()
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

	// Given no organization
	w := do(t, router, http.MethodPut, "/api/v1/session/selection", types.SelectionRequest{ProcessIDs: []string{"p1"}})
	if w.Code != http.StatusConflict {
		t.Errorf("without organization: status = %d, want 409", w.Code)
	}

	ms.status.OrganizationID = "acme"

	w = do(t, router, http.MethodPut, "/api/v1/session/selection", types.SelectionRequest{ProcessIDs: []string{"p1", "p2"}})
	if w.Code != http.StatusOK || len(ms.selection) != 2 {
		t.Errorf("status = %d, selection = %v", w.Code, ms.selection)
	}

	w = do(t, router, http.MethodPut, "/api/v1/session/selection", `{"processIds": null}`)
	if w.Code != http.StatusOK || ms.selection != nil {
		t.Errorf("null selection: status = %d, selection = %v; want all (nil)", w.Code, ms.selection)
	}

	w = do(t, router, http.MethodPut, "/api/v1/session/selection", types.SelectionRequest{ProcessIDs: []string{"missing"}})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown process: status = %d, want 422", w.Code)
	}
}

func TestSessionResults(t *testing.T) {
	ms := newMockSession()
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

	if w := do(t, router, http.MethodGet, "/api/v1/session/results", nil); w.Code != http.StatusNotFound {
		t.Errorf("before compute: status = %d, want 404", w.Code)
	}

	ms.latest = &engine.Output{
		Results:  &types.ROIResults{SnapshotID: "abc", TimeHorizonMonths: 12},
		Cashflow: make([]types.CashflowData, 12),
	}
	ms.status.Warnings = []string{"cost classification unavailable: timeout"}

	w := do(t, router, http.MethodGet, "/api/v1/session/results", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[types.ComputeResponse](t, w)
	if resp.Results.SnapshotID != "abc" || len(resp.Cashflow) != 12 || len(resp.Warnings) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReloadSession_NoOrganization(t *testing.T) {
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(newMockSession())))

	if w := do(t, router, http.MethodPost, "/api/v1/session/reload", nil); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestWrites_RefreshActiveOrganization(t *testing.T) {
	ms := newMockSession()
	ms.status.OrganizationID = "acme"
	router := NewRouter(NewHandler(newTestStore(t), "", "dev", WithSession(ms)))

	do(t, router, http.MethodPost, "/data/save", types.SaveDataRequest{OrganizationID: "globex", Groups: []types.GroupDefaults{}, Processes: []types.Process{testProcess("A", 1)}})
	if ms.reloads != 0 {
		t.Errorf("reloads = %d after saving another organization, want 0", ms.reloads)
	}

	do(t, router, http.MethodPost, "/data/save", types.SaveDataRequest{OrganizationID: "acme", Groups: []types.GroupDefaults{}, Processes: []types.Process{testProcess("A", 1)}})
	do(t, router, http.MethodPut, "/cost-classification/acme", `{"hardCosts": [], "softCosts": []}`)
	if ms.reloads != 2 {
		t.Errorf("reloads = %d, want 2", ms.reloads)
	}

	d := types.StandardDefaults()
	do(t, router, http.MethodPut, "/api/v1/orgs/acme/defaults", d)
	if _, ok := ms.orgDefaults["acme"]; !ok {
		t.Error("organization defaults not forwarded to session")
	}
}

// TestSessionFlow_EndToEnd drives a real session over the sqlite store.
func TestSessionFlow_EndToEnd(t *testing.T) {
	// Given a stored organization and a live session
	s := newTestStore(t)
	seed(t, s, "acme", testProcess("Invoice entry", 400), testProcess("Vendor setup", 30))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl := controller.New(controller.Options{Logger: logger})
	sess := session.New(ctrl, &session.StoreFetcher{Store: s}, session.Options{
		Defaults:      types.StandardDefaults(),
		HorizonMonths: 24,
		Logger:        logger,
	})
	router := NewRouter(NewHandler(s, "", "dev", WithSession(sess)))

	// When the organization is selected
	w := do(t, router, http.MethodPost, "/api/v1/session/organization", types.SelectOrganizationRequest{OrganizationID: "acme"})
	if w.Code != http.StatusOK {
		t.Fatalf("select: status = %d (%s)", w.Code, w.Body.String())
	}
	st := decode[session.Status](t, w)
	if !st.DataReadyForROI || !st.CostClassificationLoaded || st.Processes != 2 {
		t.Errorf("status = %+v", st)
	}

	// Then results become available
	resp := pollResults(t, router, func(r types.ComputeResponse) bool { return len(r.Cashflow) == 24 })
	if len(resp.Results.ProcessResults) != 2 {
		t.Errorf("process results = %d, want 2", len(resp.Results.ProcessResults))
	}
	if len(resp.Warnings) == 0 {
		t.Error("missing classification produced no warning")
	}

	// And a horizon change recomputes
	if w := do(t, router, http.MethodPut, "/api/v1/session/horizon", types.HorizonRequest{TimeHorizonMonths: 12}); w.Code != http.StatusOK {
		t.Fatalf("horizon: status = %d", w.Code)
	}
	pollResults(t, router, func(r types.ComputeResponse) bool { return len(r.Cashflow) == 12 })

	// And narrowing the selection recomputes over one process
	id := resp.Results.ProcessResults[0].ProcessID
	if w := do(t, router, http.MethodPut, "/api/v1/session/selection", types.SelectionRequest{ProcessIDs: []string{id}}); w.Code != http.StatusOK {
		t.Fatalf("selection: status = %d (%s)", w.Code, w.Body.String())
	}
	pollResults(t, router, func(r types.ComputeResponse) bool { return len(r.Results.ProcessResults) == 1 })

	// And an unknown organization is a 404
	if w := do(t, router, http.MethodPost, "/api/v1/session/organization", types.SelectOrganizationRequest{OrganizationID: "globex"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown org: status = %d, want 404", w.Code)
	}
}

func pollResults(t *testing.T, h http.Handler, cond func(types.ComputeResponse) bool) types.ComputeResponse {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		w := do(t, h, http.MethodGet, "/api/v1/session/results", nil)
		if w.Code == http.StatusOK {
			resp := decode[types.ComputeResponse](t, w)
			if resp.Results != nil && cond(resp) {
				return resp
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("results condition not met before timeout")
	return types.ComputeResponse{}
}
