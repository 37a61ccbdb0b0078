package accounts

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

const accountColumns = `id, username, email, confirmation_email, password_hash, role,
		avatar_public_id, avatar_url, reset_password_token_hash, reset_password_expire,
		created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var resetHash sql.NullString
	var resetExpire sql.NullTime

	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.ConfirmationEmail, &a.PasswordHash, &a.Role,
		&a.Avatar.PublicID, &a.Avatar.URL, &resetHash, &resetExpire,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if resetHash.Valid {
		a.ResetPasswordTokenHash = &resetHash.String
	}
	if resetExpire.Valid {
		a.ResetPasswordExpire = &resetExpire.Time
	}
	return a, nil
}

// translate maps driver errors onto the common taxonomy.
func translate(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrorNotFound
	case dbx.IsInvalidTextRepresentation(err):
		// ids are uuids; a malformed one cannot name an account
		return common.ErrorNotFound
	case dbx.IsUniqueViolation(err, ""):
		return fmt.Errorf("%w: email or username already taken", common.ErrorConflict)
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (username, email, confirmation_email, password_hash, role, avatar_public_id, avatar_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + accountColumns

	created, err := scanAccount(r.db.QueryRowContext(ctx, query,
		account.Username, account.Email, account.ConfirmationEmail, account.PasswordHash, account.Role,
		account.Avatar.PublicID, account.Avatar.URL))
	if err != nil {
		return nil, translate(err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id, username, email string) (*models.Account, error) {
	query :=
		`UPDATE accounts SET username = $2, email = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, username, email))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateRole(ctx context.Context, id, role string) (*models.Account, error) {
	query :=
		`UPDATE accounts SET role = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, role))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, id string, avatar models.Avatar) error {
	query :=
		`UPDATE accounts SET avatar_public_id = $2, avatar_url = $3, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, avatar.PublicID, avatar.URL)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE accounts SET password_hash = $2, updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error {
	query :=
		`UPDATE accounts SET reset_password_token_hash = $2, reset_password_expire = $3
		 WHERE id = $1`

	return r.execOne(ctx, query, id, tokenHash, expire)
}

func (r *PostgresRepository) ClearResetToken(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts SET reset_password_token_hash = NULL, reset_password_expire = NULL
		 WHERE id = $1`

	return r.execOne(ctx, query, id)
}

func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*models.Account, error) {
	query :=
		`UPDATE accounts
		 SET password_hash = $3, reset_password_token_hash = NULL, reset_password_expire = NULL, updated_at = now()
		 WHERE reset_password_token_hash = $1 AND reset_password_expire > $2
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, tokenHash, now, passwordHash))
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// execOne runs a statement that must touch exactly one account row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
