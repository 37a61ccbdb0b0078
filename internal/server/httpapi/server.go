// Package httpapi exposes the credential lifecycle over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	address string
	auth    *services.AuthService
	profile *services.ProfileService
	logger  logging.Logger
	router  *gin.Engine
}

func NewServer(address string, l logging.Logger, as *services.AuthService, ps *services.ProfileService) *Server {
	s := &Server{
		address: address,
		auth:    as,
		profile: ps,
		logger:  l.With("module", "http_server"),
	}

	useWireFieldNames()

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), limitBody(maxBodyBytes))
	s.registerRoutes(r)
	s.router = r

	return s
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.POST("/register", s.register)
	api.POST("/verify-otp", s.verifyOTP)
	api.POST("/login", s.login)
	api.POST("/logout", s.logout)
	api.POST("/password/forgot", s.forgotPassword)
	api.PUT("/password/reset/:token", s.resetPassword)

	private := api.Group("", s.authenticate())
	private.PUT("/password/update", s.updatePassword)
	private.GET("/me", s.me)
	private.PUT("/me/update", s.updateMe)
	private.PUT("/me/upload_avatar", s.uploadAvatar)

	admin := private.Group("/admin", s.requireRole(common.RoleAdmin))
	admin.GET("/users", s.adminListUsers)
	admin.GET("/users/:id", s.adminGetUser)
	admin.PUT("/users/:id", s.adminUpdateUser)
	admin.DELETE("/users/:id", s.adminDeleteUser)
}
