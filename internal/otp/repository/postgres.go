package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"ident-plane/internal/dbx"
	"ident-plane/internal/otp/domain"
)

// PostgresStore persists one-time codes in Postgres. It accepts any dbx.DBTX,
// so the same store works on a plain connection or inside a transaction.
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore returns a code store over the given querier.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

const codeColumns = `id, user_id, purpose, code, expired, created_at, expires_at`

// GetActiveByUserAndPurpose returns the outstanding code for (userID, purpose), or nil.
func (s *PostgresStore) GetActiveByUserAndPurpose(ctx context.Context, userID string, purpose domain.Purpose) (*domain.Code, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes
		 WHERE user_id = $1 AND purpose = $2 AND NOT expired AND expires_at > $3`,
		userID, string(purpose), time.Now().UTC())
	return scanCode(row)
}

// GetByEmailAndCode returns the active code owned by the user with the given
// email and matching the exact code value, or nil.
func (s *PostgresStore) GetByEmailAndCode(ctx context.Context, email, code string, purpose domain.Purpose) (*domain.Code, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.user_id, c.purpose, c.code, c.expired, c.created_at, c.expires_at
		 FROM one_time_codes c
		 JOIN users u ON u.id = c.user_id
		 WHERE u.email = $1 AND c.code = $2 AND c.purpose = $3 AND NOT c.expired AND c.expires_at > $4`,
		email, code, string(purpose), time.Now().UTC())
	return scanCode(row)
}

// GetByID returns the code row by id regardless of state, or nil.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.Code, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE id = $1`, id)
	return scanCode(row)
}

// Create persists the code. The partial unique index on (user_id, purpose)
// WHERE NOT expired closes the check-then-insert race: of two concurrent
// inserts exactly one succeeds and the other gets ErrActiveCodeExists.
func (s *PostgresStore) Create(ctx context.Context, c *domain.Code) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO one_time_codes (id, user_id, purpose, code, expired, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, string(c.Purpose), c.Code, c.Expired, c.CreatedAt, c.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrActiveCodeExists
		}
		return oops.Code("OTP_STORE_WRITE_FAILED").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("OTP_STORE_WRITE_FAILED").Wrap(err)
	}
	if n != 1 {
		return oops.Code("OTP_STORE_WRITE_FAILED").Errorf("insert affected %d rows", n)
	}
	return nil
}

// Expire marks the code consumed. A row that is already expired (or missing)
// is an error: consumption must happen exactly once.
func (s *PostgresStore) Expire(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE one_time_codes SET expired = TRUE WHERE id = $1 AND NOT expired`, id)
	if err != nil {
		return oops.Code("OTP_STORE_WRITE_FAILED").Wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("OTP_STORE_WRITE_FAILED").Wrap(err)
	}
	if n != 1 {
		return oops.Code("OTP_EXPIRE_NO_ROWS").With("code_id", id).Errorf("expire affected %d rows", n)
	}
	return nil
}

// ExpireStale marks TTL-elapsed codes for (userID, purpose) as expired. This
// keeps the active-code unique index from blocking issuance forever once a
// code's lifetime has passed.
func (s *PostgresStore) ExpireStale(ctx context.Context, userID string, purpose domain.Purpose) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE one_time_codes SET expired = TRUE
		 WHERE user_id = $1 AND purpose = $2 AND NOT expired AND expires_at <= $3`,
		userID, string(purpose), time.Now().UTC())
	if err != nil {
		return oops.Code("OTP_STORE_WRITE_FAILED").Wrap(err)
	}
	return nil
}

func scanCode(row *sql.Row) (*domain.Code, error) {
	var c domain.Code
	var purpose string
	err := row.Scan(&c.ID, &c.UserID, &purpose, &c.Code, &c.Expired, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, oops.Code("OTP_STORE_READ_FAILED").Wrap(err)
	}
	c.Purpose = domain.Purpose(purpose)
	return &c, nil
}
