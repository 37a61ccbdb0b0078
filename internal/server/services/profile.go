package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/storage"
)

// ProfileService covers the account's own profile and the admin views.
type ProfileService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	avatars     storage.AvatarStore
	logger      logging.Logger
}

func NewProfileService(db dbx.Transactor, m repomanager.RepositoryManager, avatars storage.AvatarStore, logger logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		avatars:     avatars,
		logger:      logger.With("module", "profile"),
	}
}

// Get returns one account.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Account, error) {
	acc, err := s.repomanager.Accounts(s.db.Conn()).GetByID(ctx, id)
	if err != nil {
		return nil, translateError(ctx, s.logger, "get account", err)
	}
	return acc, nil
}

// List returns all accounts, oldest first.
func (s *ProfileService) List(ctx context.Context) ([]*models.Account, error) {
	list, err := s.repomanager.Accounts(s.db.Conn()).List(ctx)
	if err != nil {
		return nil, translateError(ctx, s.logger, "list accounts", err)
	}
	return list, nil
}

// UpdateProfile changes username and e-mail. Taken values yield common.ErrorConflict.
func (s *ProfileService) UpdateProfile(ctx context.Context, id, username, email string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	email = common.NormalizeEmail(email)
	if err := validateStruct(&profileUpdate{Username: username, Email: email}); err != nil {
		return nil, err
	}

	acc, err := s.repomanager.Accounts(s.db.Conn()).UpdateProfile(ctx, id, username, email)
	if err != nil {
		return nil, translateError(ctx, s.logger, "update profile", err)
	}
	return acc, nil
}

// AdminUpdate changes identity fields and role together.
func (s *ProfileService) AdminUpdate(ctx context.Context, id string, req AdminUpdateRequest) (*models.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = common.NormalizeEmail(req.Email)
	if err := validateStruct(&req); err != nil {
		return nil, err
	}

	var acc *models.Account
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)
		if _, err := repo.UpdateProfile(ctx, id, req.Username, req.Email); err != nil {
			return err
		}
		updated, err := repo.UpdateRole(ctx, id, req.Role)
		acc = updated
		return err
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "admin update", err)
	}

	s.logger.Info(ctx, "account updated by admin", "account_id", id, "role", req.Role)
	return acc, nil
}

// EnsureAdmin grants the admin role to the account registered under email.
// It returns common.ErrorNotFound when no such account exists yet.
func (s *ProfileService) EnsureAdmin(ctx context.Context, email string) (*models.Account, error) {
	email = common.NormalizeEmail(email)
	repo := s.repomanager.Accounts(s.db.Conn())

	acc, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, translateError(ctx, s.logger, "ensure admin", err)
	}
	if acc.Role == common.RoleAdmin {
		return acc, nil
	}

	acc, err = repo.UpdateRole(ctx, acc.ID, common.RoleAdmin)
	if err != nil {
		return nil, translateError(ctx, s.logger, "ensure admin", err)
	}
	s.logger.Info(ctx, "admin role granted", "account_id", acc.ID)
	return acc, nil
}

// UploadAvatar stores a new avatar from a data URL and removes the old one.
func (s *ProfileService) UploadAvatar(ctx context.Context, id, dataURL string) (*models.Account, error) {
	blob, contentType, err := storage.DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db.Conn())
	acc, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, translateError(ctx, s.logger, "upload avatar", err)
	}
	previous := acc.Avatar

	avatar, err := s.avatars.Upload(ctx, blob, contentType)
	if err != nil {
		if errors.Is(err, common.ErrDependencyFailure) {
			return nil, err
		}
		s.logger.Error(ctx, "avatar upload failed", "account_id", id, "error", err)
		return nil, common.ErrDependencyFailure
	}

	if err := repo.UpdateAvatar(ctx, id, avatar); err != nil {
		s.deleteAvatar(ctx, avatar.PublicID)
		return nil, translateError(ctx, s.logger, "upload avatar", err)
	}

	s.deleteAvatar(ctx, previous.PublicID)

	acc.Avatar = avatar
	return acc, nil
}

// Delete removes the account and then its avatar.
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	repo := s.repomanager.Accounts(s.db.Conn())

	acc, err := repo.GetByID(ctx, id)
	if err != nil {
		return translateError(ctx, s.logger, "delete account", err)
	}
	if err := repo.Delete(ctx, id); err != nil {
		return translateError(ctx, s.logger, "delete account", err)
	}

	s.deleteAvatar(ctx, acc.Avatar.PublicID)
	s.logger.Info(ctx, "account deleted", "account_id", id)
	return nil
}

// deleteAvatar is best effort; an orphaned object is only logged.
func (s *ProfileService) deleteAvatar(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.avatars.Delete(context.WithoutCancel(ctx), publicID); err != nil {
		s.logger.Warn(ctx, "avatar delete failed", "public_id", publicID, "error", err)
	}
}
