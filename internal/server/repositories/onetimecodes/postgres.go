package onetimecodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	query :=
		`INSERT INTO one_time_codes (email, code_hash, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, code.Email, code.CodeHash, code.ExpiresAt).
		Scan(&code.ID, &code.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return code, nil
}

func (r *PostgresRepository) FindLive(ctx context.Context, email string, now time.Time) (*models.OneTimeCode, error) {
	query :=
		`SELECT id, email, code_hash, expires_at, created_at
		 FROM one_time_codes
		 WHERE email = $1 AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email, now))
}

func (r *PostgresRepository) Consume(ctx context.Context, email string) (*models.OneTimeCode, error) {
	query :=
		`DELETE FROM one_time_codes
		 WHERE email = $1
		 RETURNING id, email, code_hash, expires_at, created_at`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	return r.exec(ctx, `DELETE FROM one_time_codes WHERE email = $1`, email)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM one_time_codes WHERE expires_at <= $1`, now)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.OneTimeCode, error) {
	c := &models.OneTimeCode{}
	if err := row.Scan(&c.ID, &c.Email, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
