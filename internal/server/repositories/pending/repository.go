// Package pending stores registrations that are waiting for their
// one-time code to be confirmed.
package pending

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// Repository persists pending registrations, unique per e-mail.
type Repository interface {
	// Create inserts a pending registration. A second row for the same
	// e-mail yields common.ErrorConflict.
	Create(ctx context.Context, p *models.PendingRegistration) (*models.PendingRegistration, error)
	// GetByEmail returns common.ErrorNotFound when nothing is pending.
	GetByEmail(ctx context.Context, email string) (*models.PendingRegistration, error)
	// DeleteByEmail reports whether a row was removed.
	DeleteByEmail(ctx context.Context, email string) (bool, error)
	// DeleteCreatedBefore removes abandoned registrations and returns how many.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
