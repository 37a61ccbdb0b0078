// Package models defines server-side data models persisted in the database.
package models

import "time"

// Avatar references an image kept in object storage.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Account is a confirmed, durable identity.
//
// PasswordHash is a bcrypt hash and never leaves the server. The reset
// fields are both set while a password reset is outstanding and both nil
// otherwise.
type Account struct {
	ID                     string
	Username               string
	Email                  string
	ConfirmationEmail      string
	PasswordHash           string
	Role                   string
	Avatar                 Avatar
	ResetPasswordTokenHash *string
	ResetPasswordExpire    *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AccountView is the projection of an Account returned to clients.
type AccountView struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	ConfirmationEmail string    `json:"confirmation_email"`
	Role              string    `json:"role"`
	Avatar            Avatar    `json:"avatar"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// View strips credential material from the account.
func (a *Account) View() AccountView {
	return AccountView{
		ID:                a.ID,
		Username:          a.Username,
		Email:             a.Email,
		ConfirmationEmail: a.ConfirmationEmail,
		Role:              a.Role,
		Avatar:            a.Avatar,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
