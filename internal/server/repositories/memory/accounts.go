package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/accounts"
	"github.com/google/uuid"
)

type accountRepo struct {
	s  *Store
	db dbx.DBTX
}

// Accounts returns an accounts.Repository bound to db.
func (s *Store) Accounts(db dbx.DBTX) accounts.Repository {
	return &accountRepo{s: s, db: db}
}

var errAccountTaken = fmt.Errorf("%w: email or username already taken", common.ErrorConflict)

// taken reports whether another account than id uses username or email.
func (r *accountRepo) taken(id, username, email string) bool {
	for _, a := range r.s.accounts {
		if a.ID == id {
			continue
		}
		if a.Username == username || a.Email == email {
			return true
		}
	}
	return false
}

func (r *accountRepo) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	var out models.Account
	err := r.s.locked(r.db, func() error {
		if r.taken("", account.Username, account.Email) {
			return errAccountTaken
		}
		a := *account
		a.ID = uuid.NewString()
		a.CreatedAt = r.s.now()
		a.UpdatedAt = a.CreatedAt
		r.s.accounts[a.ID] = a
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	var out models.Account
	err := r.s.locked(r.db, func() error {
		a, ok := r.s.accounts[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	var out models.Account
	err := r.s.locked(r.db, func() error {
		for _, a := range r.s.accounts {
			if a.Email == email {
				out = a
				return nil
			}
		}
		return common.ErrorNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) List(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	_ = r.s.locked(r.db, func() error {
		for _, a := range r.s.accounts {
			out = append(out, &a)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *models.Account) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// update applies fn to the stored account and returns the result.
func (r *accountRepo) update(id string, fn func(a *models.Account) error) (*models.Account, error) {
	var out models.Account
	err := r.s.locked(r.db, func() error {
		a, ok := r.s.accounts[id]
		if !ok {
			return common.ErrorNotFound
		}
		if err := fn(&a); err != nil {
			return err
		}
		r.s.accounts[id] = a
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *accountRepo) UpdateProfile(ctx context.Context, id, username, email string) (*models.Account, error) {
	return r.update(id, func(a *models.Account) error {
		if r.taken(id, username, email) {
			return errAccountTaken
		}
		a.Username = username
		a.Email = email
		a.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *accountRepo) UpdateRole(ctx context.Context, id, role string) (*models.Account, error) {
	return r.update(id, func(a *models.Account) error {
		a.Role = role
		a.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *accountRepo) UpdateAvatar(ctx context.Context, id string, avatar models.Avatar) error {
	_, err := r.update(id, func(a *models.Account) error {
		a.Avatar = avatar
		a.UpdatedAt = r.s.now()
		return nil
	})
	return err
}

func (r *accountRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.update(id, func(a *models.Account) error {
		a.PasswordHash = passwordHash
		a.UpdatedAt = r.s.now()
		return nil
	})
	return err
}

func (r *accountRepo) Delete(ctx context.Context, id string) error {
	return r.s.locked(r.db, func() error {
		if _, ok := r.s.accounts[id]; !ok {
			return common.ErrorNotFound
		}
		delete(r.s.accounts, id)
		return nil
	})
}

func (r *accountRepo) SetResetToken(ctx context.Context, id, tokenHash string, expire time.Time) error {
	_, err := r.update(id, func(a *models.Account) error {
		a.ResetPasswordTokenHash = &tokenHash
		a.ResetPasswordExpire = &expire
		return nil
	})
	return err
}

func (r *accountRepo) ClearResetToken(ctx context.Context, id string) error {
	_, err := r.update(id, func(a *models.Account) error {
		a.ResetPasswordTokenHash = nil
		a.ResetPasswordExpire = nil
		return nil
	})
	return err
}

func (r *accountRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*models.Account, error) {
	var out models.Account
	err := r.s.locked(r.db, func() error {
		for id, a := range r.s.accounts {
			if a.ResetPasswordTokenHash == nil || *a.ResetPasswordTokenHash != tokenHash {
				continue
			}
			if a.ResetPasswordExpire == nil || !a.ResetPasswordExpire.After(now) {
				continue
			}
			a.PasswordHash = passwordHash
			a.ResetPasswordTokenHash = nil
			a.ResetPasswordExpire = nil
			a.UpdatedAt = r.s.now()
			r.s.accounts[id] = a
			out = a
			return nil
		}
		return common.ErrorNotFound
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
