// Package themes sincroniza el catálogo de themes en la base de cada
// tenant y activa el theme por defecto durante el provisioning.
package themes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dropDatabas3/mesadine/internal/observability/logger"
)

var ErrUnknownTheme = errors.New("theme not found in tenant catalog")

// Entry es un theme disponible para los tenants.
type Entry struct {
	Code    string
	Name    string
	Version string
}

type Service struct {
	catalog []Entry
}

func New(catalog []Entry) *Service {
	return &Service{catalog: catalog}
}

// Sync upsertea el catálogo configurado en la tabla `themes` del tenant.
// La tabla viene del clonado del template (unique key por code).
func (s *Service) Sync(ctx context.Context, db *sql.DB) error {
	for _, e := range s.catalog {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO `+"`themes`"+` (`+"`code`, `name`, `version`, `status`"+`)
			VALUES (?, ?, ?, 0)
			ON DUPLICATE KEY UPDATE `+"`name`"+` = VALUES(`+"`name`"+`), `+"`version`"+` = VALUES(`+"`version`"+`)`,
			e.Code, e.Name, e.Version,
		); err != nil {
			return fmt.Errorf("sync theme %s: %w", e.Code, err)
		}
	}
	logger.From(ctx).Debug("themes_synced", logger.Count(len(s.catalog)))
	return nil
}

// Activate deja exactamente un theme activo en la base del tenant.
func (s *Service) Activate(ctx context.Context, db *sql.DB, code string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE `themes` SET `status` = 0"); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "UPDATE `themes` SET `status` = 1 WHERE `code` = ?", code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTheme, code)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.From(ctx).Info("theme_activated", logger.Theme(code))
	return nil
}
