package api

import (
	"net/http"

	"github.com/hyperengineering/autoroi/internal/types"
	"github.com/hyperengineering/autoroi/internal/validation"
)

// SessionStatus handles GET /api/v1/session.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// SelectOrganization handles POST /api/v1/session/organization. It returns
// once data and classification have been fetched; results follow
// asynchronously.
func (h *Handler) SelectOrganization(w http.ResponseWriter, r *http.Request) {
	var req types.SelectOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if verr := validation.ValidateOrganizationID("organizationId", req.OrganizationID); verr != nil {
		MapError(w, r, verr)
		return
	}

	if err := h.session.SwitchOrganization(r.Context(), req.OrganizationID); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// ReloadSession handles POST /api/v1/session/reload.
func (h *Handler) ReloadSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reload(r.Context()); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// SetHorizon handles PUT /api/v1/session/horizon.
func (h *Handler) SetHorizon(w http.ResponseWriter, r *http.Request) {
	var req types.HorizonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.SetHorizon(req.TimeHorizonMonths); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// SetSelection handles PUT /api/v1/session/selection.
func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	if h.session.Status().OrganizationID == "" {
		WriteProblem(w, r, http.StatusConflict, "No organization selected")
		return
	}

	var req types.SelectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.session.SetSelection(req.ProcessIDs); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Status())
}

// SessionResults handles GET /api/v1/session/results.
func (h *Handler) SessionResults(w http.ResponseWriter, r *http.Request) {
	out := h.session.Latest()
	if out == nil {
		WriteProblem(w, r, http.StatusNotFound, "No results computed yet")
		return
	}

	writeJSON(w, http.StatusOK, types.ComputeResponse{
		Results:  out.Results,
		Cashflow: out.Cashflow,
		Matrix:   out.Matrix,
		Warnings: h.session.Status().Warnings,
	})
}
