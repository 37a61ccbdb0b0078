package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
}

// writeError is the only place where errors become HTTP statuses. Messages
// are fixed per class; causes stay in the logs.
func writeError(c *gin.Context, err error) {
	status, msg := classify(err)
	resp := errorResponse{Error: msg}

	var verr *common.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Error()
		resp.Field = verr.Field
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, common.ErrInvalidCode):
		return http.StatusBadRequest, "invalid or expired code"
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, "password reset token is invalid or has expired"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "login first to access this resource"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, "you are not allowed to access this resource"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyPromoted):
		return http.StatusConflict, "registration already confirmed"
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict, "username or email already in use"
	case errors.Is(err, common.ErrDependencyFailure):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

var (
	errMalformedBody = common.NewValidationError("", "malformed request body")
	errBodyTooLarge  = errors.New("request body too large")
)
