package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
)

// OTPEngine generates one-time codes, binds them to an e-mail and checks
// them exactly once. Only the SHA-256 digest of a code is stored.
type OTPEngine struct {
	repomanager     repomanager.RepositoryManager
	validity        time.Duration
	length          int
	alphabet        string
	replaceExisting bool
	now             func() time.Time
	randomCode      func(length int, alphabet string) (string, error)
}

func NewOTPEngine(m repomanager.RepositoryManager, cfg *config.Config) *OTPEngine {
	return &OTPEngine{
		repomanager:     m,
		validity:        cfg.OTPValidityDuration,
		length:          cfg.OTPLength,
		alphabet:        cfg.OTPAlphabet,
		replaceExisting: cfg.OTPReplaceExisting,
		now:             time.Now,
		randomCode:      cryptox.RandomCode,
	}
}

// Generate draws a fresh code and its expiry instant.
func (e *OTPEngine) Generate() (string, time.Time, error) {
	code, err := e.randomCode(e.length, e.alphabet)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	return code, e.now().Add(e.validity), nil
}

// Issue stores the binding for email inside tx. Earlier codes for the
// e-mail are removed; when replacement is disabled a still-live code makes
// Issue fail with common.ErrorConflict instead.
func (e *OTPEngine) Issue(ctx context.Context, tx dbx.DBTX, email, code string, expiresAt time.Time) (*models.OneTimeCode, error) {
	repo := e.repomanager.OneTimeCodes(tx)

	if !e.replaceExisting {
		_, err := repo.FindLive(ctx, email, e.now())
		switch {
		case err == nil:
			return nil, fmt.Errorf("%w: a verification code is still pending", common.ErrorConflict)
		case !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}
	}

	if _, err := repo.DeleteByEmail(ctx, email); err != nil {
		return nil, err
	}

	return repo.Create(ctx, &models.OneTimeCode{
		Email:     email,
		CodeHash:  cryptox.HashToken(code),
		ExpiresAt: expiresAt,
	})
}

// Verify consumes the binding for email and checks submitted against it.
// The binding is deleted whatever the outcome. Failures are
// common.ErrCodeNotFound, common.ErrCodeExpired or common.ErrCodeMismatch.
func (e *OTPEngine) Verify(ctx context.Context, tx dbx.DBTX, email, submitted string) error {
	code, err := e.repomanager.OneTimeCodes(tx).Consume(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrCodeNotFound
		}
		return err
	}

	if code.Expired(e.now()) {
		return common.ErrCodeExpired
	}
	if !cryptox.Equal(code.CodeHash, cryptox.HashToken(submitted)) {
		return common.ErrCodeMismatch
	}
	return nil
}

// Sweep removes codes whose expiry has passed.
func (e *OTPEngine) Sweep(ctx context.Context, db dbx.DBTX) (int64, error) {
	return e.repomanager.OneTimeCodes(db).DeleteExpired(ctx, e.now())
}
