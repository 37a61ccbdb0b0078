package pending

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

func (r *PostgresRepository) Create(ctx context.Context, p *models.PendingRegistration) (*models.PendingRegistration, error) {
	query :=
		`INSERT INTO pending_registrations (username, email, confirmation_email, sealed_password, password_nonce, otp_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		p.Username, p.Email, p.ConfirmationEmail, p.SealedPassword, p.PasswordNonce, p.OTPID).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "pending_registrations_email_key") {
			return nil, fmt.Errorf("%w: registration already pending", common.ErrorConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.PendingRegistration, error) {
	query :=
		`SELECT id, username, email, confirmation_email, sealed_password, password_nonce, otp_id, created_at
		 FROM pending_registrations
		 WHERE email = $1`

	p := &models.PendingRegistration{}
	var otpID sql.NullString

	err := r.db.QueryRowContext(ctx, query, email).Scan(&p.ID, &p.Username, &p.Email, &p.ConfirmationEmail,
		&p.SealedPassword, &p.PasswordNonce, &otpID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if otpID.Valid {
		p.OTPID = &otpID.String
	}
	return p, nil
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_registrations WHERE email = $1`, email)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_registrations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
