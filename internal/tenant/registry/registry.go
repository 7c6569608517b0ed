// Package registry es el catálogo control-plane de tenants: una fila por
// restaurante, con dominio y base de datos únicos a nivel global.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/store/mysql"
)

var (
	ErrNotFound          = errors.New("tenant not found")
	ErrDuplicateDomain   = errors.New("domain already exists")
	ErrDuplicateDatabase = errors.New("database name already exists")
	ErrInvalidFields     = errors.New("invalid tenant fields")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Record es una fila de `tenants`. Database es inmutable una vez asignado.
type Record struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Domain      string    `json:"domain"`
	Database    string    `json:"database"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Type        string    `json:"type"`
	Country     string    `json:"country"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Fields son los campos administrables de un tenant. Database solo se
// usa en Create; Update lo ignora.
type Fields struct {
	Name        string
	Domain      string
	Database    string
	Email       string
	Phone       string
	Start       time.Time
	End         time.Time
	Type        string
	Country     string
	Description string
}

// Page es un resultado paginado estable (ordenado por id).
type Page struct {
	Items   []Record `json:"items"`
	Page    int      `json:"page"`
	PerPage int      `json:"per_page"`
	Total   int64    `json:"total"`
}

type Registry struct {
	db *sql.DB
}

func New(db *sql.DB) *Registry {
	return &Registry{db: db}
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidFields, field, reason)
}

// Validate aplica las reglas de los campos requeridos. forCreate exige
// además el identificador de base.
func (f Fields) Validate(forCreate bool) error {
	if strings.TrimSpace(f.Name) == "" || len(f.Name) > 255 {
		return invalid("name", "is required (max 255)")
	}
	if strings.TrimSpace(f.Domain) == "" || len(f.Domain) > 255 {
		return invalid("domain", "is required (max 255)")
	}
	if forCreate {
		if !validDatabaseName(f.Database) {
			return invalid("database", "must be [a-zA-Z0-9_]+ (max 64)")
		}
	}
	if !strings.Contains(f.Email, "@") || len(f.Email) > 255 {
		return invalid("email", "must be a valid address")
	}
	if strings.TrimSpace(f.Phone) == "" || len(f.Phone) > 20 {
		return invalid("phone", "is required (max 20)")
	}
	if f.Start.IsZero() || f.End.IsZero() {
		return invalid("start/end", "are required")
	}
	if f.End.Before(f.Start) {
		return invalid("end", "must be on or after start")
	}
	if strings.TrimSpace(f.Type) == "" || len(f.Type) > 255 {
		return invalid("type", "is required (max 255)")
	}
	if strings.TrimSpace(f.Country) == "" || len(f.Country) > 255 {
		return invalid("country", "is required (max 255)")
	}
	if len(f.Description) > 1000 {
		return invalid("description", "max 1000")
	}
	return nil
}

// validDatabaseName limita el identificador a lo que puede interpolarse
// con backticks sin sorpresas y a lo que MySQL acepta como schema name.
func validDatabaseName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
		default:
			return false
		}
	}
	return true
}

const recordCols = "`id`, `name`, `domain`, `database`, `email`, `phone`, `start`, `end`, `type`, `country`, COALESCE(`description`, ''), `status`, `created_at`, `updated_at`"

type rowScanner interface{ Scan(dest ...any) error }

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	err := row.Scan(
		&r.ID, &r.Name, &r.Domain, &r.Database, &r.Email, &r.Phone,
		&r.Start, &r.End, &r.Type, &r.Country, &r.Description,
		&r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create inserta el TenantRecord con status active. No crea la base
// física; eso es del provisioner, como paso siguiente con el id asignado.
func (r *Registry) Create(ctx context.Context, f Fields) (*Record, error) {
	if err := f.Validate(true); err != nil {
		return nil, err
	}

	// Pre-check de dominio para un error amable; la unique key es la
	// defensa real contra el check-then-act race.
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM `tenants` WHERE `domain` = ?)", f.Domain,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check domain: %w", err)
	}
	if exists {
		return nil, ErrDuplicateDomain
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO `+"`tenants`"+`
			(`+"`name`, `domain`, `database`, `email`, `phone`, `start`, `end`, `type`, `country`, `description`, `status`"+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.Domain, f.Database, f.Email, f.Phone,
		f.Start, f.End, f.Type, f.Country, nullable(f.Description), StatusActive,
	)
	if err != nil {
		return nil, mapDuplicate(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Info("tenant_record_created",
		logger.TenantID(id),
		logger.Domain(f.Domain),
		logger.Database(f.Database),
	)
	return r.Get(ctx, id)
}

// Update modifica los campos administrables. La unicidad de dominio
// excluye el propio id; el identificador de base no se toca.
func (r *Registry) Update(ctx context.Context, id int64, f Fields) (*Record, error) {
	if err := f.Validate(false); err != nil {
		return nil, err
	}
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	var taken bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM `tenants` WHERE `domain` = ? AND `id` <> ?)", f.Domain, id,
	).Scan(&taken); err != nil {
		return nil, fmt.Errorf("check domain: %w", err)
	}
	if taken {
		return nil, ErrDuplicateDomain
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE `+"`tenants`"+` SET
			`+"`name`"+` = ?, `+"`domain`"+` = ?, `+"`email`"+` = ?, `+"`phone`"+` = ?,
			`+"`start`"+` = ?, `+"`end`"+` = ?, `+"`type`"+` = ?, `+"`country`"+` = ?, `+"`description`"+` = ?
		WHERE `+"`id`"+` = ?`,
		f.Name, f.Domain, f.Email, f.Phone,
		f.Start, f.End, f.Type, f.Country, nullable(f.Description), id,
	)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	return r.Get(ctx, id)
}

// Delete elimina la fila del registry. No toca la base física.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM `tenants` WHERE `id` = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id int64) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		"SELECT "+recordCols+" FROM `tenants` WHERE `id` = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetByDomain resuelve un tenant por su dominio (lookup del middleware
// de resolución por Host).
func (r *Registry) GetByDomain(ctx context.Context, domain string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		"SELECT "+recordCols+" FROM `tenants` WHERE `domain` = ?", domain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetByDatabase resuelve un tenant por su identificador de base.
func (r *Registry) GetByDatabase(ctx context.Context, database string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx,
		"SELECT "+recordCols+" FROM `tenants` WHERE `database` = ?", database))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListDatabases retorna todos los identificadores de base registrados.
// Lo usa el reconcile para detectar orphans.
func (r *Registry) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT `database` FROM `tenants`")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// NormalizeOrder acepta asc/desc en cualquier caso; default desc (el
// listado admin muestra lo más nuevo primero).
func NormalizeOrder(order string) string {
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		return "ASC"
	}
	return "DESC"
}

// List retorna una página estable ordenada por id.
func (r *Registry) List(ctx context.Context, page, perPage int, order string) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 5
	}
	dir := NormalizeOrder(order)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `tenants`").Scan(&total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+recordCols+" FROM `tenants` ORDER BY `id` "+dir+" LIMIT ? OFFSET ?",
		perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &Page{Items: []Record{}, Page: page, PerPage: perPage, Total: total}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, *rec)
	}
	return out, rows.Err()
}

// SetStatus fija el status. Reaplicar el mismo status es un no-op exitoso.
func (r *Registry) SetStatus(ctx context.Context, id int64, status Status) (*Record, error) {
	if status != StatusActive && status != StatusDisabled {
		return nil, invalid("status", "must be active or disabled")
	}
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		"UPDATE `tenants` SET `status` = ? WHERE `id` = ?", status, id,
	); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// mapDuplicate traduce violaciones de unique key (1062) al error de
// dominio según la key que disparó.
func mapDuplicate(err error) error {
	if !mysql.IsDuplicateEntry(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "tenants_database_unique"):
		return ErrDuplicateDatabase
	case strings.Contains(msg, "tenants_domain_unique"):
		return ErrDuplicateDomain
	}
	return err
}
