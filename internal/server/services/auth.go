package services

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// AuthResult is returned by operations that sign the caller in.
type AuthResult struct {
	Account models.AccountView
	Session auth.Session
}

// AuthService is the set of operations exposed to clients. Each returns
// either a result or an error from the common taxonomy.
type AuthService struct {
	registration *RegistrationService
	credentials  *CredentialManager
	issuer       *auth.Issuer
	logger       logging.Logger
}

func NewAuthService(registration *RegistrationService, credentials *CredentialManager, issuer *auth.Issuer, logger logging.Logger) *AuthService {
	return &AuthService{
		registration: registration,
		credentials:  credentials,
		issuer:       issuer,
		logger:       logger.With("module", "auth"),
	}
}

func (s *AuthService) BeginRegistration(ctx context.Context, req RegistrationRequest) error {
	return s.registration.BeginRegistration(ctx, req)
}

func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) (*AuthResult, error) {
	acc, err := s.registration.VerifyRegistration(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, acc)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	acc, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, acc)
}

// Logout revokes the presented session token.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.issuer.Revoke(ctx, claims); err != nil {
		return translateError(ctx, s.logger, "logout", err)
	}
	return nil
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	return s.credentials.ForgotPassword(ctx, email)
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*AuthResult, error) {
	acc, err := s.credentials.ResetPassword(ctx, token, password, confirm)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, acc)
}

func (s *AuthService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	return s.credentials.ChangePassword(ctx, accountID, oldPassword, newPassword)
}

// Authenticate resolves a bearer token to its claims.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.issuer.Verify(ctx, token)
	if err != nil {
		return nil, translateError(ctx, s.logger, "authenticate token", err)
	}
	return claims, nil
}

func (s *AuthService) signIn(ctx context.Context, acc *models.Account) (*AuthResult, error) {
	session, err := s.issuer.Issue(acc.ID, acc.Role)
	if err != nil {
		return nil, translateError(ctx, s.logger, "issue session", err)
	}
	return &AuthResult{Account: acc.View(), Session: session}, nil
}
