// Package lifecycle maneja las transiciones de estado de un tenant
// (activate/disable), el borrado destructivo y la reconciliación entre
// el registry y el catálogo físico de bases.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

// Registry es el subconjunto del registry que usa el lifecycle.
type Registry interface {
	Get(ctx context.Context, id int64) (*registry.Record, error)
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status registry.Status) (*registry.Record, error)
	ListDatabases(ctx context.Context) ([]string, error)
}

// Catalog son las operaciones físicas que usa el lifecycle.
type Catalog interface {
	DropDatabase(ctx context.Context, name string) error
	ListSchemas(ctx context.Context) ([]string, error)
}

// PoolInvalidator cierra el pool de una base borrada.
type PoolInvalidator interface {
	Invalidate(database string)
}

// ReconcileReport es el resultado de un sweep de reconciliación.
type ReconcileReport struct {
	// Bases físicas con patrón de tenant sin fila en el registry
	// (posible crash entre el drop y el delete, o compensación fallida).
	OrphanDatabases []string `json:"orphan_databases"`
	// Filas del registry cuya base física no existe.
	OrphanRecords []string `json:"orphan_records"`
	// Bases orphan efectivamente dropeadas (solo con DropOrphans).
	Dropped []string `json:"dropped,omitempty"`
}

type Service struct {
	registry Registry
	catalog  Catalog
	pools    PoolInvalidator
}

func New(reg Registry, catalog Catalog, pools PoolInvalidator) *Service {
	return &Service{registry: reg, catalog: catalog, pools: pools}
}

// Activate deja el tenant en active. Idempotente.
func (s *Service) Activate(ctx context.Context, id int64) (*registry.Record, error) {
	return s.registry.SetStatus(ctx, id, registry.StatusActive)
}

// Disable deja el tenant en disabled. Idempotente.
func (s *Service) Disable(ctx context.Context, id int64) (*registry.Record, error) {
	return s.registry.SetStatus(ctx, id, registry.StatusDisabled)
}

// Delete es irreversible: borra la fila del registry y luego la base
// física. El orden es deliberado: un crash intermedio deja una base
// orphan (la detecta Reconcile) y nunca una fila apuntando a una base
// que ya no existe.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.catalog.DropDatabase(ctx, rec.Database); err != nil {
		logger.From(ctx).Error("tenant_database_drop_failed",
			logger.TenantID(id),
			logger.Database(rec.Database),
			logger.Err(err),
		)
		return fmt.Errorf("registry row removed but database drop failed: %w", err)
	}

	if s.pools != nil {
		s.pools.Invalidate(rec.Database)
	}

	logger.From(ctx).Info("tenant_deleted",
		logger.TenantID(id),
		logger.Database(rec.Database),
		logger.Domain(rec.Domain),
	)
	return nil
}

// Reconcile compara el catálogo físico con el registry y reporta
// inconsistencias en ambas direcciones. Con dropOrphans, las bases
// orphan se eliminan además de reportarse.
func (s *Service) Reconcile(ctx context.Context, dropOrphans bool) (*ReconcileReport, error) {
	schemas, err := s.catalog.ListSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	registered, err := s.registry.ListDatabases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registered databases: %w", err)
	}

	report := diff(schemas, registered)

	if dropOrphans {
		for _, name := range report.OrphanDatabases {
			if err := s.catalog.DropDatabase(ctx, name); err != nil {
				logger.From(ctx).Error("reconcile_drop_failed", logger.Database(name), logger.Err(err))
				continue
			}
			if s.pools != nil {
				s.pools.Invalidate(name)
			}
			report.Dropped = append(report.Dropped, name)
		}
	}

	if len(report.OrphanDatabases) > 0 || len(report.OrphanRecords) > 0 {
		logger.From(ctx).Warn("reconcile_found_orphans",
			logger.Any("orphan_databases", report.OrphanDatabases),
			logger.Any("orphan_records", report.OrphanRecords),
		)
	}
	return report, nil
}

// diff calcula los orphans en ambas direcciones. Solo considera bases
// con convención de nombre de tenant: el control plane, el template y
// cualquier base ajena quedan fuera del sweep.
func diff(schemas, registered []string) *ReconcileReport {
	regSet := make(map[string]struct{}, len(registered))
	for _, d := range registered {
		regSet[d] = struct{}{}
	}
	schemaSet := make(map[string]struct{}, len(schemas))
	for _, sch := range schemas {
		schemaSet[sch] = struct{}{}
	}

	report := &ReconcileReport{OrphanDatabases: []string{}, OrphanRecords: []string{}}
	for _, sch := range schemas {
		if !dbcontext.IsTenantDatabase(sch) {
			continue
		}
		if _, ok := regSet[sch]; !ok {
			report.OrphanDatabases = append(report.OrphanDatabases, sch)
		}
	}
	for _, d := range registered {
		if _, ok := schemaSet[d]; !ok {
			report.OrphanRecords = append(report.OrphanRecords, d)
		}
	}
	return report
}
