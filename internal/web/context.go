package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/pricelist/internal/core"
)

// OrganizationHeader carries the tenant id resolved by the gateway.
const OrganizationHeader = "X-Organization-ID"

// requireOrganization stores the tenant and client address on the request
// context. Requests without a valid tenant id are rejected.
func requireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(OrganizationHeader))
		if err != nil || id == uuid.Nil {
			respondError(w, r, fmt.Errorf("%w: %s header must be a UUID", errInvalidRequest, OrganizationHeader))
			return
		}
		ctx := core.ContextWithOrganization(r.Context(), id)
		ctx = core.ContextWithClientIP(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// organization returns the tenant set by requireOrganization.
func organization(r *http.Request) uuid.UUID {
	id, _ := core.OrganizationFromContext(r.Context())
	return id
}

// uuidParam parses a UUID URL parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s %q is not a UUID", errInvalidRequest, name, raw)
	}
	return id, nil
}

// supplierScope builds the catalog scope from the tenant and {supplierID}.
func supplierScope(r *http.Request) (core.Scope, error) {
	supplierID, err := uuidParam(r, "supplierID")
	if err != nil {
		return core.Scope{}, err
	}
	return core.Scope{OrganizationID: organization(r), SupplierID: supplierID}, nil
}
