package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sqldriver "github.com/go-sql-driver/mysql"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

// Códigos de error del servidor MySQL que mapeamos a errores de dominio.
const (
	errDupEntry       = 1062 // ER_DUP_ENTRY
	errDBCreateExists = 1007 // ER_DB_CREATE_EXISTS
	errBadDB          = 1049 // ER_BAD_DB_ERROR
)

type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

// Store envuelve el *sql.DB del control plane. Las queries cross-database
// (clonado, INFORMATION_SCHEMA, CREATE/DROP DATABASE) van por esta conexión.
type Store struct {
	db       *sql.DB
	database string // database por defecto del DSN
	baseDSN  *sqldriver.Config
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	mc, err := sqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	// parseTime para escanear DATETIME/TIMESTAMP en time.Time
	mc.ParseTime = true

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			db.SetConnMaxLifetime(d)
		}
	}

	// Non-blocking startup: try to ping, but don't fail if it fails.
	// This allows the app to start even if DB is temporarily down.
	if err := db.PingContext(ctx); err != nil {
		logger.L().Warn("mysql_pool_startup_ping_failed", logger.Err(err))
	} else {
		logger.L().Info("mysql_pool_ready",
			logger.Database(mc.DBName),
			logger.Int("max_open_conns", cfg.MaxOpenConns),
		)
	}

	return &Store{db: db, database: mc.DBName, baseDSN: mc}, nil
}

// DB expone el pool interno para queries directas.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Database retorna el nombre de la base por defecto del DSN.
func (s *Store) Database() string {
	if s == nil {
		return ""
	}
	return s.database
}

// DSNForDatabase deriva un DSN idéntico al del control plane pero apuntando
// a otra base. Así los pools por tenant heredan host/credenciales/flags.
func (s *Store) DSNForDatabase(name string) string {
	mc := *s.baseDSN
	mc.DBName = name
	return mc.FormatDSN()
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// QuoteIdentifier escapa un identificador MySQL con backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func mysqlErrNumber(err error) uint16 {
	var me *sqldriver.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsDuplicateEntry indica si el error es una violación de unique key (1062).
func IsDuplicateEntry(err error) bool { return mysqlErrNumber(err) == errDupEntry }

// IsDatabaseExists indica si el error es CREATE DATABASE sobre una base existente (1007).
func IsDatabaseExists(err error) bool { return mysqlErrNumber(err) == errDBCreateExists }

// IsUnknownDatabase indica si el error refiere a una base inexistente (1049).
func IsUnknownDatabase(err error) bool { return mysqlErrNumber(err) == errBadDB }

// SchemaExists consulta el catálogo físico por una base con ese nombre.
func (s *Store) SchemaExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		"SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", name,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListSchemas retorna los nombres de todas las bases del servidor.
func (s *Store) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA")
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

// CreateDatabase crea una base física. El nombre viene validado por el
// registry, igualmente se escapa con backticks.
func (s *Store) CreateDatabase(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "CREATE DATABASE "+QuoteIdentifier(name))
	return err
}

// DropDatabase elimina una base física si existe.
func (s *Store) DropDatabase(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+QuoteIdentifier(name))
	return err
}
