package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperengineering/autoroi/internal/client"
	"github.com/hyperengineering/autoroi/internal/normalize"
	"github.com/hyperengineering/autoroi/internal/session"
	"github.com/hyperengineering/autoroi/internal/store"
	"github.com/hyperengineering/autoroi/internal/validation"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) ProblemWithErrors {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal problem: %v (%s)", err, w.Body.String())
	}
	return p
}

func TestWriteProblem_BodyFormat(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/session/results", nil)

	WriteProblem(w, r, http.StatusNotFound, "No results computed yet")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	p := decodeProblem(t, w)
	if p.Type != problemBaseURI+"not-found" || p.Title != "Not Found" {
		t.Errorf("type/title = %q/%q", p.Type, p.Title)
	}
	if p.Detail != "No results computed yet" || p.Instance != "/api/v1/session/results" {
		t.Errorf("detail/instance = %q/%q", p.Detail, p.Instance)
	}
}

func TestWriteProblem_UnknownStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteProblem(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusTeapot, "short and stout")

	p := decodeProblem(t, w)
	if p.Type != problemBaseURI+"unknown" || p.Title != http.StatusText(http.StatusTeapot) {
		t.Errorf("problem = %+v", p.Problem)
	}
}

func TestWriteProblemWithErrors_422(t *testing.T) {
	w := httptest.NewRecorder()
	errs := []validation.ValidationError{
		{Field: "processes[0].name", Message: "is required"},
		{Field: "organizationId", Message: "is required"},
	}

	WriteProblemWithErrors(w, httptest.NewRequest(http.MethodPost, "/data/save", nil), "Request contains invalid fields", errs)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	p := decodeProblem(t, w)
	if len(p.Errors) != 2 || p.Errors[0].Field != "processes[0].name" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestMapError(t *testing.T) {
	shape := &normalize.ShapeError{Field: "processes", Got: "object"}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{"not found", fmt.Errorf("load acme: %w", store.ErrNotFound), http.StatusNotFound, "Resource not found"},
		{"not found beats load failure", fmt.Errorf("%w: %w", client.ErrLoadFailed, store.ErrNotFound), http.StatusNotFound, "Resource not found"},
		{"shape", shape, http.StatusUnprocessableEntity, shape.Error()},
		{"validation", &validation.ValidationError{Field: "timeHorizonMonths", Message: "must be between 1 and 600"}, http.StatusUnprocessableEntity, "Request contains invalid fields"},
		{"unknown process", fmt.Errorf("%w: p9", session.ErrUnknownProcess), http.StatusUnprocessableEntity, "unknown process id: p9"},
		{"no organization", session.ErrNoOrganization, http.StatusConflict, "No organization selected"},
		{"load failed", fmt.Errorf("%w: connection refused", client.ErrLoadFailed), http.StatusBadGateway, "Organization data could not be loaded"},
		{"unknown", errors.New("disk I/O error at /var/lib/secret.db"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			MapError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			p := decodeProblem(t, w)
			if p.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", p.Detail, tt.wantDetail)
			}
			if strings.Contains(w.Body.String(), "secret.db") {
				t.Error("internal error details leaked")
			}
		})
	}
}

func TestMapError_ValidationCarriesField(t *testing.T) {
	w := httptest.NewRecorder()
	MapError(w, httptest.NewRequest(http.MethodPut, "/", nil), validation.ValidateHorizon("timeHorizonMonths", 0))

	p := decodeProblem(t, w)
	if len(p.Errors) != 1 || p.Errors[0].Field != "timeHorizonMonths" {
		t.Errorf("errors = %+v", p.Errors)
	}
}
