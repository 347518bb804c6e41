package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"account-auth/internal/auth"
)

const uniqueViolation = "23505"

// DBTX is the subset of *sql.DB and *sql.Tx the directory needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres stores accounts in the accounts table. Email uniqueness is enforced
// by the unique index on lower(email).
type Postgres struct {
	db  DBTX
	now func() time.Time
}

func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

const selectAccount = `
	SELECT id::text, name, email, password_hash, email_verified, active, role,
	       created_at, updated_at, last_login_at
	FROM accounts
`

func (p *Postgres) FindByEmail(ctx context.Context, email string) (auth.Account, error) {
	row := p.db.QueryRowContext(ctx, selectAccount+`WHERE lower(email) = lower($1)`, email)
	return scanAccount(row, "query account by email")
}

func (p *Postgres) FindByID(ctx context.Context, id string) (auth.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return auth.Account{}, auth.ErrAccountNotFound
	}

	row := p.db.QueryRowContext(ctx, selectAccount+`WHERE id = $1`, id)
	return scanAccount(row, "query account by id")
}

func (p *Postgres) Create(ctx context.Context, account auth.NewAccount) (auth.Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return auth.Account{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := p.now().UTC()
	created := auth.Account{
		ID:            id.String(),
		Name:          account.Name,
		Email:         account.Email,
		PasswordHash:  account.PasswordHash,
		EmailVerified: account.EmailVerified,
		Active:        account.Active,
		Role:          account.Role,
	}

	err = p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, email_verified, active, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at
	`, created.ID, created.Name, created.Email, created.PasswordHash,
		created.EmailVerified, created.Active, created.Role, now,
	).Scan(&created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return auth.Account{}, auth.ErrEmailTaken
		}
		return auth.Account{}, fmt.Errorf("insert account: %w", err)
	}

	return created, nil
}

func (p *Postgres) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return p.update(ctx, "record login", `
		UPDATE accounts SET last_login_at = $2, updated_at = $2 WHERE id = $1
	`, id, at.UTC())
}

// SetActive flips the active flag. Tokens already issued to an inactive
// account are refused on their next use.
func (p *Postgres) SetActive(ctx context.Context, id string, active bool) error {
	return p.update(ctx, "set account active", `
		UPDATE accounts SET active = $2, updated_at = $3 WHERE id = $1
	`, id, active, p.now().UTC())
}

func (p *Postgres) SetRole(ctx context.Context, id, role string) error {
	return p.update(ctx, "set account role", `
		UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1
	`, id, role, p.now().UTC())
}

func (p *Postgres) update(ctx context.Context, op, query, id string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return auth.ErrAccountNotFound
	}

	result, err := p.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row, op string) (auth.Account, error) {
	var (
		account     auth.Account
		lastLoginAt sql.NullTime
	)

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.EmailVerified,
		&account.Active,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
		&lastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Account{}, auth.ErrAccountNotFound
		}
		return auth.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if lastLoginAt.Valid {
		value := lastLoginAt.Time.UTC()
		account.LastLoginAt = &value
	}
	return account, nil
}
