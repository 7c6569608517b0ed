package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

// RunMigrations ejecuta todos los *_up.sql del FS (ordenados lexicográficamente)
// contra el pool dado y devuelve cuántos scripts se aplicaron.
// Cada archivo contiene un único statement; los DDL de MySQL hacen commit
// implícito, así que no hay transacción alrededor.
func RunMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var applied int
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return applied, err
		}
		if _, err := db.ExecContext(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("exec %s: %w", f, err)
		}
		applied++
	}

	logger.L().Info("control_plane_migrations_applied", logger.Count(applied))
	return applied, nil
}
