package superadmin

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/mesadine/internal/security/password"
)

func accountRows(t *testing.T, plain string) *sqlmock.Rows {
	t.Helper()
	hash, err := password.Hash(password.Default, plain)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "username", "password", "company_name", "company_website", "email"}).
		AddRow(1, "admin", hash, "MesaDine", "https://mesadine.test", "ops@mesadine.test")
}

func TestAuthenticate_OK(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM `superadmin` WHERE `username` =").
		WithArgs("admin").
		WillReturnRows(accountRows(t, "hunter22"))

	account, err := New(db).Authenticate(context.Background(), "admin", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "admin", account.Username)
	require.Equal(t, int64(1), account.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM `superadmin` WHERE `username` =").
		WithArgs("admin").
		WillReturnRows(accountRows(t, "hunter22"))

	_, err = New(db).Authenticate(context.Background(), "admin", "not-it")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_UnknownUserSameError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM `superadmin` WHERE `username` =").
		WithArgs("nadie").
		WillReturnError(sql.ErrNoRows)

	_, err = New(db).Authenticate(context.Background(), "nadie", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeed_SkipsWhenAccountsExist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, New(db).Seed(context.Background(), "admin", "admin"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeed_CreatesInitialAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO `superadmin`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, New(db).Seed(context.Background(), "admin", "changeme"))
	require.NoError(t, mock.ExpectationsWereMet())
}
