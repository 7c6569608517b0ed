package middlewares

import (
	"context"

	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

type ridKey struct{}
type tenantKey struct{}

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, ridKey{}, rid)
}

// GetRequestID extrae el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ridKey{}).(string); ok {
		return v
	}
	return ""
}

func setTenant(ctx context.Context, rec *registry.Record) context.Context {
	return context.WithValue(ctx, tenantKey{}, rec)
}

// GetTenant extrae el tenant resuelto por el middleware de resolución.
// nil en rutas del control plane.
func GetTenant(ctx context.Context) *registry.Record {
	if v, ok := ctx.Value(tenantKey{}).(*registry.Record); ok {
		return v
	}
	return nil
}
