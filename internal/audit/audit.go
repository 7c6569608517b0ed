// Package audit emite registros append-only de operaciones sensibles
// tenant-scoped. El sink por defecto es el logger estructurado; nunca se
// mutan registros ya emitidos.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

// Record captura el contexto de una operación sensible.
type Record struct {
	Database  string
	URL       string
	Method    string
	IP        string
	UserAgent string
	// TenantID es nil cuando no pudo resolverse ni derivarse.
	TenantID *int64
}

// Sink recibe registros de auditoría. Write no debe fallar hacia el
// caller: auditar nunca corta la operación auditada.
type Sink interface {
	Write(ctx context.Context, event string, rec Record)
}

// ZapSink escribe los registros en el logger estructurado del proceso.
type ZapSink struct{}

func (ZapSink) Write(ctx context.Context, event string, rec Record) {
	fields := []zap.Field{
		logger.Database(rec.Database),
		logger.URL(rec.URL),
		logger.Method(rec.Method),
		logger.ClientIP(rec.IP),
		logger.UserAgent(rec.UserAgent),
	}
	if rec.TenantID != nil {
		fields = append(fields, logger.TenantID(*rec.TenantID))
	} else {
		fields = append(fields, zap.Skip())
	}
	logger.Named("audit").Info(event, fields...)
}
