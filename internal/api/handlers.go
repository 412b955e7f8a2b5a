package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/autoroi/internal/engine"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// SessionService is the slice of session.Session the handlers drive.
type SessionService interface {
	SwitchOrganization(ctx context.Context, orgID string) error
	Reload(ctx context.Context) error
	SetHorizon(months int) error
	SetSelection(ids []string) error
	SetOrganizationDefaults(orgID string, d types.GlobalDefaults)
	Latest() *engine.Output
	Status() session.Status
}

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	session  SessionService
	stream   http.Handler
	metrics  http.Handler
	defaults types.GlobalDefaults
	horizon  int
	apiKey   string
	version  string
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithSession mounts the session endpoints.
func WithSession(s SessionService) Option {
	return func(h *Handler) { h.session = s }
}

// WithStream mounts the result stream at /api/v1/session/ws.
func WithStream(stream http.Handler) Option {
	return func(h *Handler) { h.stream = stream }
}

// WithMetrics mounts the exposition handler at /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithComputeDefaults sets the defaults and horizon used by stateless
// compute requests that omit them.
func WithComputeDefaults(d types.GlobalDefaults, horizonMonths int) Option {
	return func(h *Handler) {
		h.defaults = d
		h.horizon = horizonMonths
	}
}

// NewHandler creates a Handler backed by s.
func NewHandler(s store.Store, apiKey, version string, opts ...Option) *Handler {
	h := &Handler{
		store:    s,
		defaults: types.StandardDefaults(),
		horizon:  36,
		apiKey:   apiKey,
		version:  version,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health stats failed", "component", "api", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Organizations: stats.Organizations,
		Processes:     stats.Processes,
	})
}

// LoadData handles GET /data/load?organizationId=<id>.
func (h *Handler) LoadData(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organizationId")
	if verr := validation.ValidateOrganizationID("organizationId", orgID); verr != nil {
		writeJSON(w, http.StatusBadRequest, types.LoadResponse{Error: verr.Error()})
		return
	}

	ds, err := h.store.LoadData(r.Context(), orgID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.LoadResponse{Error: "organization not found"})
		return
	}
	if err != nil {
		slog.Error("load data failed", "component", "api", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.LoadResponse{Error: "internal error"})
		return
	}

	data, err := json.Marshal(ds)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.LoadResponse{Success: true, Data: data})
}

// SaveData handles POST /data/save.
func (h *Handler) SaveData(w http.ResponseWriter, r *http.Request) {
	var body types.RawSaveDataRequest
	if !decodeBody(w, r, &body) {
		return
	}
	ds, err := normalize.ParseParts(body.Groups, body.Processes)
	if err != nil {
		MapError(w, r, err)
		return
	}
	req := types.SaveDataRequest{
		OrganizationID: body.OrganizationID,
		Groups:         ds.Groups,
		Processes:      ds.Processes,
	}
	if errs := validation.ValidateSaveRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	saved, err := h.store.SaveData(r.Context(), req.OrganizationID, types.Dataset{
		Groups:    req.Groups,
		Processes: req.Processes,
	})
	if err != nil {
		slog.Error("save data failed", "component", "api", "org_id", req.OrganizationID, "error", err)
		MapError(w, r, err)
		return
	}

	h.refreshIfActive(r.Context(), req.OrganizationID)
	writeJSON(w, http.StatusOK, types.SaveDataResponse{Success: true, Data: saved})
}

// GetCostClassification handles GET /cost-classification/{orgId}.
func (h *Handler) GetCostClassification(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrganizationIDFromContext(r.Context())

	c, err := h.store.GetCostClassification(r.Context(), orgID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, types.ClassificationResponse{Error: "no cost classification"})
		return
	}
	if err != nil {
		slog.Error("load classification failed", "component", "api", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, types.ClassificationResponse{Error: "internal error"})
		return
	}

	raw, err := json.Marshal(c)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClassificationResponse{Success: true, Classification: raw})
}

// PutCostClassification handles PUT /cost-classification/{orgId}.
func (h *Handler) PutCostClassification(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrganizationIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Request body too large or unreadable")
		return
	}
	c, err := normalize.ParseCostClassification(body)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if err := h.store.SaveCostClassification(r.Context(), orgID, *c); err != nil {
		slog.Error("save classification failed", "component", "api", "org_id", orgID, "error", err)
		MapError(w, r, err)
		return
	}

	h.refreshIfActive(r.Context(), orgID)
	writeJSON(w, http.StatusOK, types.ClassificationResponse{Success: true, Classification: body})
}

// ListOrganizations handles GET /api/v1/orgs.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.store.ListOrganizations(r.Context())
	if err != nil {
		slog.Error("list organizations failed", "component", "api", "error", err)
		MapError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []types.Organization{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// GetDefaults handles GET /api/v1/orgs/{orgId}/defaults.
func (h *Handler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrganizationIDFromContext(r.Context())

	d, err := h.store.GetGlobalDefaults(r.Context(), orgID)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PutDefaults handles PUT /api/v1/orgs/{orgId}/defaults. The active session
// picks the new defaults up immediately.
func (h *Handler) PutDefaults(w http.ResponseWriter, r *http.Request) {
	orgID := MustOrganizationIDFromContext(r.Context())

	var d types.GlobalDefaults
	if !decodeBody(w, r, &d) {
		return
	}
	if errs := validation.ValidateGlobalDefaults(d); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Defaults contain invalid fields", errs)
		return
	}
	if err := h.store.SaveGlobalDefaults(r.Context(), orgID, d); err != nil {
		slog.Error("save defaults failed", "component", "api", "org_id", orgID, "error", err)
		MapError(w, r, err)
		return
	}

	if h.session != nil {
		h.session.SetOrganizationDefaults(orgID, d)
	}
	writeJSON(w, http.StatusOK, d)
}

// Compute handles POST /api/v1/roi/compute. It runs the engine on the
// request payload alone and touches no session state.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	var req types.ComputeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ds, err := normalize.ParseParts(req.Groups, req.Processes)
	if err != nil {
		MapError(w, r, err)
		return
	}

	horizon := req.TimeHorizonMonths
	if horizon == 0 {
		horizon = h.horizon
	}
	if verr := validation.ValidateHorizon("timeHorizonMonths", horizon); verr != nil {
		MapError(w, r, verr)
		return
	}

	defaults := h.defaults
	if req.Defaults != nil {
		defaults = *req.Defaults
	}
	classification := req.CostClassification
	if classification == nil {
		classification = types.EmptyClassification()
	}

	norm := normalize.Apply(*ds, defaults)
	out := engine.Compute(engine.Input{
		Dataset:        norm.Dataset,
		Defaults:       norm.Defaults,
		Classification: classification,
		HorizonMonths:  horizon,
	})

	resp := types.ComputeResponse{
		Results:  out.Results,
		Cashflow: out.Cashflow,
		Matrix:   out.Matrix,
	}
	for _, warn := range norm.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// refreshIfActive reloads the session when orgID is its active organization.
func (h *Handler) refreshIfActive(ctx context.Context, orgID string) {
	if h.session == nil || h.session.Status().OrganizationID != orgID {
		return
	}
	if err := h.session.Reload(ctx); err != nil {
		slog.Warn("session reload after write failed", "component", "api", "org_id", orgID, "error", err)
	}
}

// decodeBody decodes a JSON request body into dst, writing a 400 problem
// and returning false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
