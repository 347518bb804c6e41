package directory

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-auth/internal/auth"
)

const accountID = "01960000-0000-7000-8000-000000000001"

var accountColumns = []string{
	"id", "name", "email", "password_hash", "email_verified", "active", "role",
	"created_at", "updated_at", "last_login_at",
}

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgres(db), mock
}

func TestPostgres_FindByEmail(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lastLogin := created.Add(time.Hour)

	mock.ExpectQuery(`SELECT id::text, name, email, .* FROM accounts\s+WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("jane@x.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(accountID, "Jane Doe", "jane@x.com", "$2a$12$hash", false, true, "user", created, created, lastLogin))

	account, err := repo.FindByEmail(context.Background(), "jane@x.com")
	require.NoError(t, err)
	assert.Equal(t, accountID, account.ID)
	assert.Equal(t, "$2a$12$hash", account.PasswordHash)
	assert.True(t, account.Active)
	require.NotNil(t, account.LastLoginAt)
	assert.True(t, lastLogin.Equal(*account.LastLoginAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_FindByEmailNotFound(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`FROM accounts\s+WHERE lower\(email\)`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestPostgres_FindByIDErrors(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	mock.ExpectQuery(`FROM accounts\s+WHERE id = \$1`).
		WithArgs(accountID).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.FindByID(context.Background(), accountID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrAccountNotFound)
	assert.Contains(t, err.Error(), "query account by id")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectQuery(`INSERT INTO accounts .* RETURNING created_at, updated_at`).
		WithArgs(sqlmock.AnyArg(), "Jane Doe", "jane@x.com", "$2a$12$hash", false, true, "user", now).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	account, err := repo.Create(context.Background(), auth.NewAccount{
		Name:         "Jane Doe",
		Email:        "jane@x.com",
		PasswordHash: "$2a$12$hash",
		Active:       true,
		Role:         "user",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.True(t, now.Equal(account.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateUniqueViolation(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_lower_key"})

	_, err := repo.Create(context.Background(), auth.NewAccount{Email: "jane@x.com"})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestPostgres_CreateOtherError(t *testing.T) {
	repo, mock := newPostgresWithMock(t)

	mock.ExpectQuery(`INSERT INTO accounts`).
		WillReturnError(&pgconn.PgError{Code: "57P01"})

	_, err := repo.Create(context.Background(), auth.NewAccount{Email: "jane@x.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrEmailTaken)
	assert.Contains(t, err.Error(), "insert account")
}

func TestPostgres_RecordLogin(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	at := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE accounts SET last_login_at = \$2, updated_at = \$2 WHERE id = \$1`).
		WithArgs(accountID, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordLogin(context.Background(), accountID, at))

	mock.ExpectExec(`UPDATE accounts SET last_login_at`).
		WithArgs(accountID, at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.RecordLogin(context.Background(), accountID, at), auth.ErrAccountNotFound)

	mock.ExpectExec(`UPDATE accounts SET last_login_at`).
		WithArgs(accountID, at).
		WillReturnError(errors.New("timeout"))
	err := repo.RecordLogin(context.Background(), accountID, at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record login")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetActiveAndRole(t *testing.T) {
	repo, mock := newPostgresWithMock(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectExec(`UPDATE accounts SET active = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs(accountID, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE accounts SET role = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs(accountID, "admin", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetActive(context.Background(), accountID, false))
	require.NoError(t, repo.SetRole(context.Background(), accountID, "admin"))
	require.NoError(t, mock.ExpectationsWereMet())
}
