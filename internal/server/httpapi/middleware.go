package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// maxBodyBytes fits a base64 avatar of storage.MaxAvatarSize in a data URL.
const maxBodyBytes = 8 << 20

// limitBody caps how much of a request body handlers may read.
func limitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.Last().Err)
		}

		if c.Writer.Status() >= 500 {
			s.logger.Error(c.Request.Context(), "request", args...)
			return
		}
		s.logger.Info(c.Request.Context(), "request", args...)
	}
}

// bearerToken reads the session token from the Authorization header,
// falling back to the session cookie.
func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader(common.AuthorizationHeaderName))
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if cookie, err := c.Cookie(common.SessionCookieName); err == nil {
		return cookie
	}
	return ""
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			writeError(c, common.ErrorUnauthorized)
			return
		}

		claims, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireRole checks the stored role rather than the one in the token, so
// a demotion takes effect before the token expires.
func (s *Server) requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := s.profile.Get(c.Request.Context(), claimsFrom(c).UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				err = common.ErrorUnauthorized
			}
			writeError(c, err)
			return
		}
		if acc.Role != role {
			writeError(c, common.ErrorForbidden)
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return &auth.Claims{}
	}
	claims, _ := v.(*auth.Claims)
	if claims == nil {
		return &auth.Claims{}
	}
	return claims
}
