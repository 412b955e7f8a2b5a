package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/autoroi/internal/validation"
)

// orgIDContextKey is the context key for the resolved organization ID.
type orgIDContextKey struct{}

// ErrNoOrganizationInContext indicates no organization was resolved for
// the request.
var ErrNoOrganizationInContext = errors.New("no organization in context")

// WithOrganizationID returns a new context with the organization ID attached.
func WithOrganizationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, orgIDContextKey{}, id)
}

// OrganizationIDFromContext extracts the organization ID from the context.
// Returns ErrNoOrganizationInContext if not present or empty.
func OrganizationIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(orgIDContextKey{}).(string)
	if !ok || id == "" {
		return "", ErrNoOrganizationInContext
	}
	return id, nil
}

// MustOrganizationIDFromContext extracts the organization ID or panics.
// Use only when OrganizationMiddleware guarantees presence.
func MustOrganizationIDFromContext(ctx context.Context) string {
	id, err := OrganizationIDFromContext(ctx)
	if err != nil {
		panic("organization not in context: middleware misconfiguration")
	}
	return id
}

// OrganizationMiddleware validates the {orgId} URL parameter and attaches
// it to the request context. Invalid IDs get a 400 problem response.
func OrganizationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "orgId")
		if verr := validation.ValidateOrganizationID("orgId", id); verr != nil {
			WriteProblem(w, r, http.StatusBadRequest, verr.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOrganizationID(r.Context(), id)))
	})
}
