package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/onetimecodes"
	"github.com/google/uuid"
)

type codeRepo struct {
	s  *Store
	db dbx.DBTX
}

// OneTimeCodes returns an onetimecodes.Repository bound to db.
func (s *Store) OneTimeCodes(db dbx.DBTX) onetimecodes.Repository {
	return &codeRepo{s: s, db: db}
}

func (r *codeRepo) Create(ctx context.Context, code *models.OneTimeCode) (*models.OneTimeCode, error) {
	var out models.OneTimeCode
	_ = r.s.locked(r.db, func() error {
		c := *code
		c.ID = uuid.NewString()
		c.CreatedAt = r.s.now()
		r.s.codes[c.ID] = c
		out = c
		return nil
	})
	return &out, nil
}

func (r *codeRepo) FindLive(ctx context.Context, email string, now time.Time) (*models.OneTimeCode, error) {
	var out *models.OneTimeCode
	_ = r.s.locked(r.db, func() error {
		for _, c := range r.s.codes {
			if c.Email != email || c.Expired(now) {
				continue
			}
			if out == nil || c.CreatedAt.After(out.CreatedAt) {
				out = &c
			}
		}
		return nil
	})
	if out == nil {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (r *codeRepo) Consume(ctx context.Context, email string) (*models.OneTimeCode, error) {
	var out *models.OneTimeCode
	_ = r.s.locked(r.db, func() error {
		for id, c := range r.s.codes {
			if c.Email != email {
				continue
			}
			if out == nil {
				out = &c
			}
			r.deleteCode(id)
		}
		return nil
	})
	if out == nil {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (r *codeRepo) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	_ = r.s.locked(r.db, func() error {
		for id, c := range r.s.codes {
			if c.Email == email {
				r.deleteCode(id)
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r *codeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	_ = r.s.locked(r.db, func() error {
		for id, c := range r.s.codes {
			if c.Expired(now) {
				r.deleteCode(id)
				n++
			}
		}
		return nil
	})
	return n, nil
}

// deleteCode removes a code and clears pending references to it, matching
// the ON DELETE SET NULL foreign key of the SQL schema.
func (r *codeRepo) deleteCode(id string) {
	delete(r.s.codes, id)
	for email, p := range r.s.pending {
		if p.OTPID != nil && *p.OTPID == id {
			p.OTPID = nil
			r.s.pending[email] = p
		}
	}
}
