// Package provisioner orquesta el alta de un tenant: fila en el
// registry, base física, clonado del template, fixtures y theme.
//
// Los pasos 2-4 (insert, CREATE DATABASE, clonado) son la fase primaria
// y corren como saga: si un paso falla se compensan los anteriores
// (delete de la fila, drop de la base). La fase secundaria (fixtures y
// theme) es best-effort: sus fallas se devuelven como warnings en el
// resultado, nunca se tragan en un log.
package provisioner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/tenant/cloner"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
)

// ErrPrimaryPhase marca fallas de la fase primaria ya compensadas: no
// quedó ni fila en el registry ni base física a medio crear.
var ErrPrimaryPhase = errors.New("provisioning primary phase failed")

type Status string

const (
	StatusProvisioned  Status = "provisioned"
	StatusWithWarnings Status = "provisioned_with_warnings"
)

// Result distingue éxito pleno de éxito parcial. Un tenant con
// Status=provisioned_with_warnings tiene base y fila, pero algún paso
// secundario (fixture, theme) quedó pendiente de reparación manual.
type Result struct {
	// RunID correlaciona la corrida completa (logs de saga incluidos).
	RunID    string           `json:"run_id"`
	Status   Status           `json:"status"`
	Tenant   *registry.Record `json:"tenant"`
	Warnings []string         `json:"warnings,omitempty"`
	Clone    *cloner.Report   `json:"clone,omitempty"`
}

// Catalog son las operaciones sobre el catálogo físico de bases.
// Lo implementa *mysql.Store.
type Catalog interface {
	SchemaExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
}

// Registry es el subconjunto del registry que necesita la saga.
type Registry interface {
	Create(ctx context.Context, f registry.Fields) (*registry.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Cloner clona template → target.
type Cloner interface {
	Clone(ctx context.Context, template, target string) (*cloner.Report, error)
}

// ThemeActivator es la parte de themes que corre en fase secundaria.
type ThemeActivator interface {
	Sync(ctx context.Context, db *sql.DB) error
	Activate(ctx context.Context, db *sql.DB, code string) error
}

// DatabaseExists detecta el CREATE DATABASE perdido contra otra request
// concurrente (el catálogo es la única defensa real del check-then-act).
type DatabaseExists func(err error) bool

// MetricsFunc reporta el resultado de un provisioning.
// result: provisioned | with_warnings | duplicate | failed
type MetricsFunc func(result string, duration time.Duration)

type Config struct {
	Template          string // base template a clonar
	DefaultTheme      string
	DefaultLocationID int64
	Metrics           MetricsFunc    // opcional
	DatabaseExists    DatabaseExists // opcional, default mysql 1007
}

type Provisioner struct {
	catalog  Catalog
	registry Registry
	cloner   Cloner
	themes   ThemeActivator
	cfg      Config
}

func New(catalog Catalog, reg Registry, cl Cloner, th ThemeActivator, cfg Config) *Provisioner {
	if cfg.DefaultLocationID == 0 {
		cfg.DefaultLocationID = 1
	}
	return &Provisioner{catalog: catalog, registry: reg, cloner: cl, themes: th, cfg: cfg}
}

func (p *Provisioner) report(result string, start time.Time) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics(result, time.Since(start))
	}
}

// Provision ejecuta el alta completa. dbc es el connection context de la
// unidad de trabajo en curso: la fase secundaria corre dentro de
// WithDatabase, así el target previo del caller queda restaurado incluso
// si la fase falla.
func (p *Provisioner) Provision(ctx context.Context, dbc *dbcontext.Context, f registry.Fields) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := logger.From(ctx).With(
		logger.Component("provisioner"),
		logger.String("run_id", runID),
		logger.Database(f.Database),
		logger.Domain(f.Domain),
	)

	if err := f.Validate(true); err != nil {
		p.report("failed", start)
		return nil, err
	}

	// Paso 1: existencia física. El template jamás puede ser target.
	if f.Database == p.cfg.Template {
		p.report("duplicate", start)
		return nil, registry.ErrDuplicateDatabase
	}
	exists, err := p.catalog.SchemaExists(ctx, f.Database)
	if err != nil {
		p.report("failed", start)
		return nil, fmt.Errorf("check database catalog: %w", err)
	}
	if exists {
		p.report("duplicate", start)
		return nil, registry.ErrDuplicateDatabase
	}

	// Paso 2: fila en el registry.
	rec, err := p.registry.Create(ctx, f)
	if err != nil {
		p.report("failed", start)
		return nil, err
	}

	// Paso 3: base física. Compensación: borrar la fila recién creada.
	if err := p.catalog.CreateDatabase(ctx, f.Database); err != nil {
		p.compensateRecord(ctx, rec.ID)
		if p.databaseExists(err) {
			// Perdimos la carrera contra otra request por el mismo nombre.
			p.report("duplicate", start)
			return nil, registry.ErrDuplicateDatabase
		}
		p.report("failed", start)
		return nil, fmt.Errorf("%w: create database: %v", ErrPrimaryPhase, err)
	}

	// Paso 4: clonado. Falla total compensa base + fila.
	report, err := p.cloner.Clone(ctx, p.cfg.Template, f.Database)
	if err != nil {
		p.compensateDatabase(ctx, f.Database)
		p.compensateRecord(ctx, rec.ID)
		p.report("failed", start)
		return nil, fmt.Errorf("%w: clone template: %v", ErrPrimaryPhase, err)
	}

	// Paso 5: fase secundaria dentro del connection context del tenant.
	// WithDatabase garantiza la vuelta al target previo del caller.
	warnings := report.Warnings()
	err = dbc.WithDatabase(ctx, f.Database, func(ctx context.Context, db *sql.DB) error {
		if err := p.seedFixtures(ctx, db); err != nil {
			warnings = append(warnings, fmt.Sprintf("seed fixtures: %v", err))
		}
		if err := p.themes.Sync(ctx, db); err != nil {
			warnings = append(warnings, fmt.Sprintf("sync themes: %v", err))
			return nil // sin catálogo no hay nada que activar
		}
		if err := p.themes.Activate(ctx, db, p.cfg.DefaultTheme); err != nil {
			warnings = append(warnings, fmt.Sprintf("activate theme %s: %v", p.cfg.DefaultTheme, err))
		}
		return nil
	})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("tenant connection: %v", err))
	}

	result := &Result{RunID: runID, Status: StatusProvisioned, Tenant: rec, Warnings: warnings, Clone: report}
	if len(warnings) > 0 {
		result.Status = StatusWithWarnings
		log.Warn("tenant_provisioned_with_warnings",
			logger.TenantID(rec.ID),
			logger.Any("warnings", warnings),
		)
		p.report("with_warnings", start)
	} else {
		log.Info("tenant_provisioned",
			logger.TenantID(rec.ID),
			logger.Count(report.Created),
			logger.Duration(time.Since(start)),
		)
		p.report("provisioned", start)
	}
	return result, nil
}

func (p *Provisioner) databaseExists(err error) bool {
	if p.cfg.DatabaseExists != nil {
		return p.cfg.DatabaseExists(err)
	}
	return false
}

// compensateRecord deshace el insert del paso 2. Una compensación que
// falla se loguea: queda una fila sin base, que el reconcile detecta.
func (p *Provisioner) compensateRecord(ctx context.Context, id int64) {
	if err := p.registry.Delete(ctx, id); err != nil {
		logger.From(ctx).Error("provision_compensation_failed",
			logger.Op("delete_record"),
			logger.TenantID(id),
			logger.Err(err),
		)
	}
}

func (p *Provisioner) compensateDatabase(ctx context.Context, name string) {
	if err := p.catalog.DropDatabase(ctx, name); err != nil {
		logger.From(ctx).Error("provision_compensation_failed",
			logger.Op("drop_database"),
			logger.Database(name),
			logger.Err(err),
		)
	}
}

// seedFixtures crea la mesa Cashier por defecto y su asociación de
// location. Check-then-insert idempotente: reprovisionar o reintentar no
// duplica el fixture.
func (p *Provisioner) seedFixtures(ctx context.Context, db *sql.DB) error {
	var existing int64
	err := db.QueryRowContext(ctx,
		"SELECT `table_id` FROM `tables` WHERE `table_name` = ?", "Cashier",
	).Scan(&existing)
	if err == nil {
		logger.From(ctx).Debug("cashier_fixture_exists")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check cashier: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO `+"`tables`"+`
			(`+"`table_name`, `min_capacity`, `max_capacity`, `table_status`, `extra_capacity`, `is_joinable`, `priority`, `qr_code`"+`)
		VALUES (?, 1, 1, 1, 0, 0, 999, ?)`,
		"Cashier", "cashier",
	)
	if err != nil {
		return fmt.Errorf("insert cashier: %w", err)
	}
	tableID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO `+"`locationables`"+` (`+"`location_id`, `locationable_id`, `locationable_type`, `options`"+`)
		VALUES (?, ?, 'tables', NULL)`,
		p.cfg.DefaultLocationID, tableID,
	); err != nil {
		return fmt.Errorf("link cashier location: %w", err)
	}

	logger.From(ctx).Info("cashier_fixture_seeded", logger.Int("table_id", int(tableID)))
	return nil
}
