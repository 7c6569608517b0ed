// Package cloner replica el schema y los datos de la base template en la
// base recién creada de un tenant.
package cloner

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/store/mysql"
)

// TableReport es el resultado del clonado de una tabla.
type TableReport struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
	Err  string `json:"err,omitempty"`
}

// Report resume un clonado completo. Failed > 0 significa clonado
// parcial: la tabla quedó fuera pero el resto siguió.
type Report struct {
	Template string        `json:"template"`
	Target   string        `json:"target"`
	Tables   []TableReport `json:"tables"`
	Created  int           `json:"created"`
	Copied   int           `json:"copied"`
	Failed   int           `json:"failed"`
}

// Warnings lista los errores por tabla en formato legible.
func (r *Report) Warnings() []string {
	var out []string
	for _, t := range r.Tables {
		if t.Err != "" {
			out = append(out, fmt.Sprintf("table %s: %s", t.Name, t.Err))
		}
	}
	return out
}

type Cloner struct {
	db      *sql.DB // conexión admin (control plane), con visibilidad cross-database
	control string  // schema default del pool; se restaura al devolver la conexión
}

func New(db *sql.DB, control string) *Cloner {
	return &Cloner{db: db, control: control}
}

// Clone copia todas las tablas del template al target (ya creado). Por
// tabla: SHOW CREATE TABLE, reescritura del qualifier del template, DDL
// en el target y, si hay filas, un INSERT ... SELECT masivo. Una tabla
// que falla se reporta y se salta; el clonado no es atómico entre
// tablas. Las tablas se procesan en el orden de enumeración del schema:
// con FOREIGN_KEY_CHECKS=0 en la sesión el orden no importa.
func (c *Cloner) Clone(ctx context.Context, template, target string) (*Report, error) {
	// Una sola conexión para todo el clonado: USE y FOREIGN_KEY_CHECKS
	// son estado de sesión y no pueden repartirse entre el pool.
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("clone connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
		return nil, fmt.Errorf("disable fk checks: %w", err)
	}
	// La conexión vuelve al pool compartido del control plane: antes de
	// soltarla hay que deshacer todo el estado de sesión, incluido el
	// schema default que el USE del target dejó apuntando al tenant.
	// Si la restauración falla la sesión queda en estado desconocido y
	// la conexión se descarta en vez de devolverse al pool.
	defer func() {
		rctx := context.WithoutCancel(ctx)
		_, fkErr := conn.ExecContext(rctx, "SET FOREIGN_KEY_CHECKS = 1")
		_, useErr := conn.ExecContext(rctx, "USE "+mysql.QuoteIdentifier(c.control))
		if fkErr != nil || useErr != nil {
			logger.From(ctx).Error("clone_session_restore_failed",
				logger.Err(errors.Join(fkErr, useErr)))
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	tables, err := listTables(ctx, conn, template)
	if err != nil {
		return nil, fmt.Errorf("enumerate template tables: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "USE "+mysql.QuoteIdentifier(target)); err != nil {
		return nil, fmt.Errorf("select target database: %w", err)
	}

	log := logger.From(ctx).With(
		logger.String("template", template),
		logger.Database(target),
	)

	report := &Report{Template: template, Target: target}
	for _, table := range tables {
		tr := c.cloneTable(ctx, conn, template, target, table)
		report.Tables = append(report.Tables, tr)
		if tr.Err != "" {
			report.Failed++
			log.Error("clone_table_failed", logger.Table(table), logger.String("err", tr.Err))
			continue
		}
		report.Created++
		if tr.Rows > 0 {
			report.Copied++
		}
	}

	log.Info("template_clone_done",
		logger.Count(report.Created),
		logger.Int("copied", report.Copied),
		logger.Int("failed", report.Failed),
	)
	return report, nil
}

func (c *Cloner) cloneTable(ctx context.Context, conn *sql.Conn, template, target, table string) TableReport {
	tr := TableReport{Name: table}

	var name, ddl string
	err := conn.QueryRowContext(ctx,
		"SHOW CREATE TABLE "+mysql.QuoteIdentifier(template)+"."+mysql.QuoteIdentifier(table),
	).Scan(&name, &ddl)
	if err != nil {
		tr.Err = fmt.Sprintf("show create: %v", err)
		return tr
	}

	if _, err := conn.ExecContext(ctx, rewriteDDL(ddl, template)); err != nil {
		tr.Err = fmt.Sprintf("create: %v", err)
		return tr
	}

	var count int64
	if err := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+mysql.QuoteIdentifier(template)+"."+mysql.QuoteIdentifier(table),
	).Scan(&count); err != nil {
		tr.Err = fmt.Sprintf("count: %v", err)
		return tr
	}

	if count > 0 {
		if _, err := conn.ExecContext(ctx,
			"INSERT INTO "+mysql.QuoteIdentifier(target)+"."+mysql.QuoteIdentifier(table)+
				" SELECT * FROM "+mysql.QuoteIdentifier(template)+"."+mysql.QuoteIdentifier(table),
		); err != nil {
			tr.Err = fmt.Sprintf("copy: %v", err)
			return tr
		}
		tr.Rows = count
	}
	return tr
}

func listTables(ctx context.Context, conn *sql.Conn, template string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, "SHOW TABLES FROM "+mysql.QuoteIdentifier(template))
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

// rewriteDDL elimina el qualifier de la base template del statement de
// creación para que aplique sobre el nombre pelado de la tabla en la
// base seleccionada.
func rewriteDDL(ddl, template string) string {
	return strings.ReplaceAll(ddl, mysql.QuoteIdentifier(template)+".", "")
}
