package core

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ctxKeyOrganization contextKey = "organization_id"
	ctxKeyClientIP     contextKey = "client_ip"
)

// ContextWithOrganization stores the tenant resolved by the caller.
func ContextWithOrganization(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyOrganization, id)
}

// OrganizationFromContext returns the tenant stored by ContextWithOrganization.
func OrganizationFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKeyOrganization).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ContextWithClientIP records the requesting address for run logs.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ClientIPFromContext returns the address stored by ContextWithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}
