package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/pending"
	"github.com/google/uuid"
)

type pendingRepo struct {
	s  *Store
	db dbx.DBTX
}

// Pending returns a pending.Repository bound to db.
func (s *Store) Pending(db dbx.DBTX) pending.Repository {
	return &pendingRepo{s: s, db: db}
}

func (r *pendingRepo) Create(ctx context.Context, p *models.PendingRegistration) (*models.PendingRegistration, error) {
	var out models.PendingRegistration
	err := r.s.locked(r.db, func() error {
		if _, ok := r.s.pending[p.Email]; ok {
			return fmt.Errorf("%w: registration already pending", common.ErrorConflict)
		}
		row := *p
		row.ID = uuid.NewString()
		row.CreatedAt = r.s.now()
		r.s.pending[row.Email] = row
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *pendingRepo) GetByEmail(ctx context.Context, email string) (*models.PendingRegistration, error) {
	var out models.PendingRegistration
	err := r.s.locked(r.db, func() error {
		p, ok := r.s.pending[email]
		if !ok {
			return common.ErrorNotFound
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *pendingRepo) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	var deleted bool
	_ = r.s.locked(r.db, func() error {
		_, deleted = r.s.pending[email]
		delete(r.s.pending, email)
		return nil
	})
	return deleted, nil
}

func (r *pendingRepo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	_ = r.s.locked(r.db, func() error {
		for email, p := range r.s.pending {
			if p.CreatedAt.Before(cutoff) {
				delete(r.s.pending, email)
				n++
			}
		}
		return nil
	})
	return n, nil
}
