// Package accounts declares the repository contract for confirmed accounts
// and its PostgreSQL implementation.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository persists confirmed accounts. Implementations return
// common.ErrorNotFound for missing rows and common.ErrorConflict when the
// e-mail or username is already taken.
type Repository interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)

	UpdateProfile(ctx context.Context, id, username, email string) (*models.Account, error)
	UpdateRole(ctx context.Context, id, role string) (*models.Account, error)
	UpdateAvatar(ctx context.Context, id string, avatar models.Avatar) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error

	// SetResetToken stores the digest and expiry of an outstanding reset token.
	SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error
	// ClearResetToken removes both reset fields.
	ClearResetToken(ctx context.Context, id string) error
	// ConsumeResetToken rotates the password of the account whose reset
	// digest equals tokenHash and whose expiry is after now, clearing both
	// reset fields in the same statement. It returns common.ErrorNotFound
	// when no such account exists.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*models.Account, error)
}
