// Package mailer sends the transactional e-mails of the registration and
// password-reset flows.
package mailer

import (
	"context"
	"fmt"
)

// Mailer delivers a plain message. Implementations must honour ctx
// cancellation and must not log message bodies, which carry secrets.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// VerificationMessage builds the e-mail carrying a one-time code.
func VerificationMessage(code string) (subject, body string) {
	return "Verification Email",
		fmt.Sprintf("To complete your sign up, your verification code is: %s", code)
}

// ResetPasswordMessage builds the password recovery e-mail with its link.
func ResetPasswordMessage(username, resetURL string) (subject, body string) {
	body = fmt.Sprintf(`Hi %s,

You are receiving this e-mail because a password reset was requested for your account.

Reset your password here: %s

The link expires shortly and can be used once. If you did not request a reset, ignore this e-mail.
`, username, resetURL)
	return "Password Recovery", body
}
