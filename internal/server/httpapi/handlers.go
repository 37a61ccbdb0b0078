package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.auth.BeginRegistration(c.Request.Context(), services.RegistrationRequest{
		Username:          req.Username,
		Email:             req.Email,
		ConfirmationEmail: req.ConfirmationEmail,
		Password:          req.Password,
		ConfirmPassword:   req.ConfirmPassword,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Please enter the OTP sent to your email"})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.auth.VerifyRegistration(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(c, err)
		return
	}
	s.sendSession(c, http.StatusCreated, res)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	s.sendSession(c, http.StatusOK, res)
}

// logout revokes the presented token when it is still valid and always
// clears the session cookie.
func (s *Server) logout(c *gin.Context) {
	ctx := c.Request.Context()

	if token := bearerToken(c); token != "" {
		claims, err := s.auth.Authenticate(ctx, token)
		switch {
		case errors.Is(err, common.ErrorUnauthorized):
			// nothing left to revoke
		case err != nil:
			writeError(c, err)
			return
		default:
			if err := s.auth.Logout(ctx, claims); err != nil {
				writeError(c, err)
				return
			}
		}
	}

	clearSessionCookie(c)
	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Logged Out"})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := s.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Email sent to: " + common.NormalizeEmail(req.Email)})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password, req.ConfirmPassword)
	if err != nil {
		writeError(c, err)
		return
	}
	s.sendSession(c, http.StatusOK, res)
}

func (s *Server) updatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := s.auth.ChangePassword(c.Request.Context(), claimsFrom(c).UserID, req.OldPassword, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Password updated"})
}

func (s *Server) me(c *gin.Context) {
	acc, err := s.profile.Get(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: acc.View()})
}

func (s *Server) updateMe(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := s.profile.UpdateProfile(c.Request.Context(), claimsFrom(c).UserID, req.Username, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: acc.View()})
}

func (s *Server) uploadAvatar(c *gin.Context) {
	var req uploadAvatarRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := s.profile.UploadAvatar(c.Request.Context(), claimsFrom(c).UserID, req.Avatar)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: acc.View()})
}

func (s *Server) adminListUsers(c *gin.Context) {
	list, err := s.profile.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	users := make([]models.AccountView, 0, len(list))
	for _, acc := range list {
		users = append(users, acc.View())
	}
	c.JSON(http.StatusOK, usersResponse{Success: true, Users: users})
}

func (s *Server) adminGetUser(c *gin.Context) {
	acc, err := s.profile.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: acc.View()})
}

func (s *Server) adminUpdateUser(c *gin.Context) {
	var req adminUpdateRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := s.profile.AdminUpdate(c.Request.Context(), c.Param("id"), services.AdminUpdateRequest{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{Success: true, User: acc.View()})
}

func (s *Server) adminDeleteUser(c *gin.Context) {
	if err := s.profile.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Success: true, Message: "User deleted"})
}

// sendSession answers a sign-in with the token in the body and in an
// HttpOnly cookie.
func (s *Server) sendSession(c *gin.Context, status int, res *services.AuthResult) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    res.Session.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(status, sessionResponse{
		Success:   true,
		Token:     res.Session.Token,
		ExpiresAt: res.Session.ExpiresAt,
		User:      res.Account,
	})
}

func clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
