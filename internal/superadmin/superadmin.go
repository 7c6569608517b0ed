// Package superadmin maneja las cuentas de operador del control plane.
package superadmin

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dropDatabas3/mesadine/internal/security/password"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("superadmin not found")
)

// Account es una fila de `superadmin`. PasswordHash nunca viaja en JSON.
type Account struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website"`
	Email          string `json:"email"`
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const accountCols = "`id`, `username`, `password`, `company_name`, `company_website`, `email`"

func (s *Store) scan(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CompanyName, &a.CompanyWebsite, &a.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Authenticate valida usuario y password. Falla con un único error
// genérico: no filtra si el usuario existe.
func (s *Store) Authenticate(ctx context.Context, username, plain string) (*Account, error) {
	a, err := s.scan(s.db.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM `superadmin` WHERE `username` = ?", username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !password.Verify(plain, a.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// First retorna la primera cuenta (pantalla de settings).
func (s *Store) First(ctx context.Context) (*Account, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM `superadmin` ORDER BY `id` LIMIT 1"))
}

// UpdateSettings actualiza los datos de empresa de la primera cuenta.
func (s *Store) UpdateSettings(ctx context.Context, companyName, companyWebsite, email string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE `+"`superadmin`"+` SET
			`+"`company_name`"+` = ?, `+"`company_website`"+` = ?, `+"`email`"+` = ?
		ORDER BY `+"`id`"+` LIMIT 1`,
		companyName, companyWebsite, email,
	)
	return err
}

// Seed crea la cuenta inicial si la tabla está vacía (bootstrap).
func (s *Store) Seed(ctx context.Context, username, plain string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM `superadmin`").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := password.Hash(password.Default, plain)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO `superadmin` (`username`, `password`) VALUES (?, ?)", username, hash)
	return err
}
