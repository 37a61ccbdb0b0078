package services

import (
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
)

// RegistrationRequest is the sign-up payload.
type RegistrationRequest struct {
	Username          string `json:"username" validate:"required,min=3,max=50"`
	Email             string `json:"email" validate:"required,email"`
	ConfirmationEmail string `json:"confirmation_email" validate:"required,eqfield=Email"`
	Password          string `json:"password" validate:"required,min=6,maxbytes=72"`
	ConfirmPassword   string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// Normalize trims the username and canonicalises both e-mails.
func (r *RegistrationRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = common.NormalizeEmail(r.Email)
	r.ConfirmationEmail = common.NormalizeEmail(r.ConfirmationEmail)
}

// Validate checks the shape of the request. Uniqueness is decided at promotion.
func (r *RegistrationRequest) Validate() error {
	return validateStruct(r)
}

// AdminUpdateRequest changes another account's identity fields and role.
type AdminUpdateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=user admin"`
}

// profileUpdate is the self-service subset of AdminUpdateRequest.
type profileUpdate struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
}

type passwordChange struct {
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type passwordReset struct {
	Password        string `json:"password" validate:"required,min=6,maxbytes=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}
