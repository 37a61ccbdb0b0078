// Package onetimecodes persists one-time code bindings.
package onetimecodes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository stores code digests keyed by e-mail. Rows are single-use:
// Consume deletes and returns the binding in one step.
type Repository interface {
	Create(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error)
	// FindLive returns the unexpired binding for email or common.ErrorNotFound.
	FindLive(ctx context.Context, email string, now time.Time) (*models.OneTimeCode, error)
	// Consume deletes the binding for email and returns it, or
	// common.ErrorNotFound when there was none.
	Consume(ctx context.Context, email string) (*models.OneTimeCode, error)
	DeleteByEmail(ctx context.Context, email string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
