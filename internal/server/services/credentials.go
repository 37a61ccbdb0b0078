package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// resetTokenSize is the number of random bytes in a reset token.
const resetTokenSize = 20

// CredentialManager owns password hashing and the reset-token lifecycle.
type CredentialManager struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	mailer      mailer.Mailer
	logger      logging.Logger
	cost        int
	resetTTL    time.Duration
	frontendURL string
	dummyHash   []byte
	now         func() time.Time
}

func NewCredentialManager(db dbx.Transactor, m repomanager.RepositoryManager, ml mailer.Mailer, cfg *config.Config, logger logging.Logger) (*CredentialManager, error) {
	c := &CredentialManager{
		db:          db,
		repomanager: m,
		mailer:      ml,
		logger:      logger.With("module", "credentials"),
		cost:        cfg.BcryptCost,
		resetTTL:    cfg.ResetTokenValidityDuration,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		now:         time.Now,
	}

	// Unknown e-mails are compared against this hash so that Authenticate
	// costs one bcrypt run either way.
	dummy, err := bcrypt.GenerateFromPassword(common.GenerateRandByteArray(32), c.cost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	c.dummyHash = dummy

	return c, nil
}

// HashPassword returns the bcrypt hash of raw at the configured cost.
func (c *CredentialManager) HashPassword(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword reports whether raw matches storedHash.
func (c *CredentialManager) VerifyPassword(raw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(raw)) == nil
}

// Authenticate returns the account for email when password matches, and
// common.ErrInvalidCredentials for an unknown e-mail or a wrong password alike.
func (c *CredentialManager) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	email = common.NormalizeEmail(email)

	acc, err := c.repomanager.Accounts(c.db.Conn()).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(password))
			return nil, common.ErrInvalidCredentials
		}
		return nil, translateError(ctx, c.logger, "authenticate", err)
	}

	if !c.VerifyPassword(password, acc.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}
	return acc, nil
}

// IssueResetToken stores the digest of a new reset token on the account and
// returns the raw token. Unknown e-mails yield common.ErrorNotFound.
func (c *CredentialManager) IssueResetToken(ctx context.Context, email string) (string, *models.Account, error) {
	email = common.NormalizeEmail(email)
	repo := c.repomanager.Accounts(c.db.Conn())

	acc, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, translateError(ctx, c.logger, "issue reset token", err)
	}

	raw, err := cryptox.RandomSecret(resetTokenSize)
	if err != nil {
		return "", nil, translateError(ctx, c.logger, "issue reset token", err)
	}

	if err := repo.SetResetToken(ctx, acc.ID, cryptox.HashToken(raw), c.now().Add(c.resetTTL)); err != nil {
		return "", nil, translateError(ctx, c.logger, "issue reset token", err)
	}
	return raw, acc, nil
}

// ForgotPassword issues a reset token and mails the reset link. If the mail
// cannot be sent the reset fields are cleared again.
func (c *CredentialManager) ForgotPassword(ctx context.Context, email string) error {
	raw, acc, err := c.IssueResetToken(ctx, email)
	if err != nil {
		return err
	}

	subject, body := mailer.ResetPasswordMessage(acc.Username, c.ResetURL(raw))
	if err := c.mailer.Send(ctx, acc.Email, subject, body); err != nil {
		c.logger.Warn(ctx, "reset mail failed, clearing token", "account_id", acc.ID, "error", err)
		if cerr := c.repomanager.Accounts(c.db.Conn()).ClearResetToken(context.WithoutCancel(ctx), acc.ID); cerr != nil {
			c.logger.Error(ctx, "clear reset token failed", "account_id", acc.ID, "error", cerr)
		}
		return fmt.Errorf("%w: mail: %v", common.ErrDependencyFailure, err)
	}

	c.logger.Info(ctx, "password reset requested", "account_id", acc.ID)
	return nil
}

// ResetURL is the link placed in the recovery e-mail.
func (c *CredentialManager) ResetURL(rawToken string) string {
	return c.frontendURL + "/password/reset/" + rawToken
}

// ResetPassword rotates the password of the account holding rawToken and
// clears the token in the same statement, so a token works at most once.
func (c *CredentialManager) ResetPassword(ctx context.Context, rawToken, password, confirm string) (*models.Account, error) {
	if err := validateStruct(&passwordReset{Password: password, ConfirmPassword: confirm}); err != nil {
		return nil, err
	}
	if rawToken == "" {
		return nil, common.ErrInvalidOrExpiredToken
	}

	hash, err := c.HashPassword(password)
	if err != nil {
		return nil, translateError(ctx, c.logger, "reset password", err)
	}

	acc, err := c.repomanager.Accounts(c.db.Conn()).ConsumeResetToken(ctx, cryptox.HashToken(rawToken), c.now(), hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpiredToken
		}
		return nil, translateError(ctx, c.logger, "reset password", err)
	}

	c.logger.Info(ctx, "password reset", "account_id", acc.ID)
	return acc, nil
}

// ChangePassword rotates the password after checking the current one.
func (c *CredentialManager) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if err := validateStruct(&passwordChange{Password: newPassword}); err != nil {
		return err
	}

	repo := c.repomanager.Accounts(c.db.Conn())
	acc, err := repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidCredentials
		}
		return translateError(ctx, c.logger, "change password", err)
	}

	if !c.VerifyPassword(oldPassword, acc.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := c.HashPassword(newPassword)
	if err != nil {
		return translateError(ctx, c.logger, "change password", err)
	}
	if err := repo.UpdatePassword(ctx, acc.ID, hash); err != nil {
		return translateError(ctx, c.logger, "change password", err)
	}

	c.logger.Info(ctx, "password changed", "account_id", acc.ID)
	return nil
}
