package models

import "time"

// PendingRegistration is an unconfirmed sign-up waiting for its one-time
// code. The password is kept sealed (AES-GCM) and is only hashed when the
// registration is promoted to an Account.
type PendingRegistration struct {
	ID                string
	Username          string
	Email             string
	ConfirmationEmail string
	SealedPassword    []byte
	PasswordNonce     []byte
	OTPID             *string
	CreatedAt         time.Time
}

// OneTimeCode binds a code digest to an e-mail until ExpiresAt.
type OneTimeCode struct {
	ID        string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the code can no longer be accepted at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
