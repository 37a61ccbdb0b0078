package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
)

// RegistrationService runs the two-phase sign-up: a pending registration
// paired with a one-time code, then promotion to an Account once the code
// is confirmed.
type RegistrationService struct {
	db          dbx.Transactor
	repomanager repomanager.RepositoryManager
	otp         *OTPEngine
	credentials *CredentialManager
	sealer      *cryptox.Sealer
	mailer      mailer.Mailer
	logger      logging.Logger
	pendingTTL  time.Duration
	adminEmail  string
	now         func() time.Time
}

func NewRegistrationService(db dbx.Transactor, m repomanager.RepositoryManager, otp *OTPEngine,
	credentials *CredentialManager, ml mailer.Mailer, cfg *config.Config, logger logging.Logger) (*RegistrationService, error) {

	sealer, err := cryptox.NewSealer(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("password sealer: %w", err)
	}

	return &RegistrationService{
		db:          db,
		repomanager: m,
		otp:         otp,
		credentials: credentials,
		sealer:      sealer,
		mailer:      ml,
		logger:      logger.With("module", "registration"),
		pendingTTL:  cfg.PendingRegistrationTTL,
		adminEmail:  common.NormalizeEmail(cfg.BootstrapAdminEmail),
		now:         time.Now,
	}, nil
}

// BeginRegistration replaces any earlier pending registration for the
// e-mail, issues a code, stores the new pending row and mails the code,
// all in one transaction: if the mail cannot be sent nothing persists.
func (s *RegistrationService) BeginRegistration(ctx context.Context, req RegistrationRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	sealed, nonce, err := s.sealer.Seal([]byte(req.Password))
	if err != nil {
		return translateError(ctx, s.logger, "begin registration", err)
	}

	code, expiresAt, err := s.otp.Generate()
	if err != nil {
		return translateError(ctx, s.logger, "begin registration", err)
	}

	err = s.db.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		pend := s.repomanager.Pending(tx)

		if _, err := pend.DeleteByEmail(ctx, req.Email); err != nil {
			return err
		}

		otp, err := s.otp.Issue(ctx, tx, req.Email, code, expiresAt)
		if err != nil {
			return err
		}

		_, err = pend.Create(ctx, &models.PendingRegistration{
			Username:          req.Username,
			Email:             req.Email,
			ConfirmationEmail: req.ConfirmationEmail,
			SealedPassword:    sealed,
			PasswordNonce:     nonce,
			OTPID:             &otp.ID,
		})
		if err != nil {
			return err
		}

		subject, body := mailer.VerificationMessage(code)
		if err := s.mailer.Send(ctx, req.Email, subject, body); err != nil {
			return fmt.Errorf("%w: mail: %v", common.ErrDependencyFailure, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDependencyFailure) {
			s.logger.Warn(ctx, "verification mail failed, registration rolled back", "error", err)
		}
		return translateError(ctx, s.logger, "begin registration", err)
	}

	s.logger.Info(ctx, "registration pending", "email", req.Email)
	return nil
}

// VerifyRegistration consumes the code for email and, when it matches,
// promotes the pending registration in the same transaction.
//
// A wrong, expired or missing code is reported as common.ErrInvalidCode and
// the code is gone afterwards. If promotion fails the code consumption is
// rolled back as well, so the user can retry.
func (s *RegistrationService) VerifyRegistration(ctx context.Context, email, code string) (*models.Account, error) {
	email = common.NormalizeEmail(email)

	var (
		account *models.Account
		codeErr error
	)

	err := s.db.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.otp.Verify(ctx, tx, email, code); err != nil {
			if errors.Is(err, common.ErrInvalidCode) {
				// commit the deletion
				codeErr = err
				return nil
			}
			return err
		}

		acc, err := s.promote(ctx, tx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrAlreadyPromoted) {
				codeErr = common.ErrCodeNotFound
				return nil
			}
			return err
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, translateError(ctx, s.logger, "verify registration", err)
	}
	if codeErr != nil {
		s.logger.Debug(ctx, "verification rejected", "email", email, "reason", codeErr)
		return nil, common.ErrInvalidCode
	}

	s.logger.Info(ctx, "account created", "account_id", account.ID)
	return account, nil
}

// Promote converts the pending registration for email into an Account in
// its own transaction. The caller must already have verified the code.
//
// When two promotions race, the unique index on accounts decides: the loser
// gets common.ErrAlreadyPromoted. A conflict with an unrelated account
// (same username, say) yields common.ErrorConflict and leaves the pending
// registration in place.
func (s *RegistrationService) Promote(ctx context.Context, email string) (*models.Account, error) {
	email = common.NormalizeEmail(email)

	var account *models.Account
	err := s.db.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		acc, err := s.promote(ctx, tx, email)
		account = acc
		return err
	})

	if errors.Is(err, common.ErrorConflict) {
		_, gerr := s.repomanager.Pending(s.db.Conn()).GetByEmail(ctx, email)
		if errors.Is(gerr, common.ErrorNotFound) {
			return nil, common.ErrAlreadyPromoted
		}
	}
	if err != nil {
		return nil, translateError(ctx, s.logger, "promote", err)
	}

	s.logger.Info(ctx, "account created", "account_id", account.ID)
	return account, nil
}

func (s *RegistrationService) promote(ctx context.Context, tx dbx.DBTX, email string) (*models.Account, error) {
	pend := s.repomanager.Pending(tx)
	accounts := s.repomanager.Accounts(tx)

	p, err := pend.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if _, aerr := accounts.GetByEmail(ctx, email); aerr == nil {
				return nil, common.ErrAlreadyPromoted
			}
		}
		return nil, err
	}

	password, err := s.sealer.Open(p.SealedPassword, p.PasswordNonce)
	if err != nil {
		return nil, fmt.Errorf("open sealed password: %w", err)
	}
	hash, err := s.credentials.HashPassword(string(password))
	common.WipeByteArray(password)
	if err != nil {
		return nil, err
	}

	role := common.RoleUser
	if s.adminEmail != "" && p.Email == s.adminEmail {
		role = common.RoleAdmin
	}

	acc, err := accounts.Create(ctx, &models.Account{
		Username:          p.Username,
		Email:             p.Email,
		ConfirmationEmail: p.ConfirmationEmail,
		PasswordHash:      hash,
		Role:              role,
	})
	if err != nil {
		return nil, err
	}

	if _, err := pend.DeleteByEmail(ctx, email); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.OneTimeCodes(tx).DeleteByEmail(ctx, email); err != nil {
		return nil, err
	}
	return acc, nil
}

// SweepExpired deletes expired codes and pending registrations older than
// the configured TTL.
func (s *RegistrationService) SweepExpired(ctx context.Context) (codes, pending int64, err error) {
	conn := s.db.Conn()

	codes, err = s.otp.Sweep(ctx, conn)
	if err != nil {
		return 0, 0, translateError(ctx, s.logger, "sweep codes", err)
	}

	pending, err = s.repomanager.Pending(conn).DeleteCreatedBefore(ctx, s.now().Add(-s.pendingTTL))
	if err != nil {
		return codes, 0, translateError(ctx, s.logger, "sweep pending", err)
	}
	return codes, pending, nil
}

// RunReaper calls SweepExpired every interval until ctx is done.
func (s *RegistrationService) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			codes, pending, err := s.SweepExpired(ctx)
			if err != nil {
				continue
			}
			if codes > 0 || pending > 0 {
				s.logger.Info(ctx, "expired registrations swept", "codes", codes, "pending", pending)
			}
		case <-ctx.Done():
			return
		}
	}
}
