package httpapi

import (
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// E-mails are normalized by the services, so only their presence is
// checked here.
type registerRequest struct {
	Username          string `json:"username" binding:"required,min=3,max=50"`
	Email             string `json:"email" binding:"required"`
	ConfirmationEmail string `json:"confirmation_email" binding:"required"`
	Password          string `json:"password" binding:"required,min=6"`
	ConfirmPassword   string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
}

type updateProfileRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required"`
}

type uploadAvatarRequest struct {
	Avatar string `json:"avatar" binding:"required"`
}

type adminUpdateRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=user admin"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionResponse struct {
	Success   bool               `json:"success"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	User      models.AccountView `json:"user"`
}

type userResponse struct {
	Success bool               `json:"success"`
	User    models.AccountView `json:"user"`
}

type usersResponse struct {
	Success bool                 `json:"success"`
	Users   []models.AccountView `json:"users"`
}
