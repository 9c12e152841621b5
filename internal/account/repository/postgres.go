package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"ident-plane/internal/account/domain"
	"ident-plane/internal/dbx"
)

// PostgresStore persists users in Postgres. It accepts any dbx.DBTX, so the
// same store works on a plain connection or inside a transaction.
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore returns a user store over the given querier.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, username, email, name, password_hash, role, verified, created_at, updated_at`

// GetByID returns the user for id, or nil if not found. It returns an error
// only for database failures, not for missing rows.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByUsername returns the user with the given username, or nil.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil.
func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by
// this method. Uniqueness conflicts map to the domain errors.
func (s *PostgresStore) Create(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, name, password_hash, role, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Username, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return domain.ErrUsernameTaken
			case "users_email_key":
				return domain.ErrEmailTaken
			}
		}
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	if n != 1 {
		return oops.Code("ACCOUNT_WRITE_FAILED").Errorf("insert affected %d rows", n)
	}
	return nil
}

// UpdatePassword replaces the stored password hash for the user.
func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	if n != 1 {
		return oops.Code("ACCOUNT_UPDATE_NO_ROWS").With("user_id", id).Errorf("password update affected %d rows", n)
	}
	return nil
}

// SetVerified marks the account verified.
func (s *PostgresStore) SetVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("ACCOUNT_WRITE_FAILED").Wrap(err)
	}
	if n != 1 {
		return oops.Code("ACCOUNT_UPDATE_NO_ROWS").With("user_id", id).Errorf("verify update affected %d rows", n)
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &role, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("ACCOUNT_READ_FAILED").Wrap(err)
	}
	u.Role = domain.Role(role)
	return &u, nil
}
