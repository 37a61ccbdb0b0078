// Package server wires configuration, storage backends, the mailer, the
// session denylist and the HTTP API into a runnable application, and handles
// graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/credkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/dmitrijs2005/credkeeper/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

type App struct {
	config       *config.Config
	logger       logging.Logger
	registration *services.RegistrationService
	http         *httpapi.Server
	closers      []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	app := &App{config: c, logger: logging.NewJSONLogger(logOut, c.LogLevel)}

	db, rm, err := app.openStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	denylist, err := app.openDenylist(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	avatars, err := app.openAvatarStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	ml := app.newMailer()

	creds, err := services.NewCredentialManager(db, rm, ml, c, app.logger)
	if err != nil {
		app.close()
		return nil, err
	}

	otp := services.NewOTPEngine(rm, c)
	reg, err := services.NewRegistrationService(db, rm, otp, creds, ml, c, app.logger)
	if err != nil {
		app.close()
		return nil, err
	}

	issuer := auth.NewIssuer([]byte(c.SecretKey), c.SessionTokenValidityDuration, denylist)
	as := services.NewAuthService(reg, creds, issuer, app.logger)
	ps := services.NewProfileService(db, rm, avatars, app.logger)

	if err := app.bootstrapAdmin(ctx, ps); err != nil {
		app.close()
		return nil, err
	}

	app.registration = reg
	app.http = httpapi.NewServer(c.EndpointAddrHTTP, app.logger, as, ps)

	return app, nil
}

// bootstrapAdmin promotes the configured account to admin. An account that
// does not exist yet gets the role when its registration is confirmed.
func (app *App) bootstrapAdmin(ctx context.Context, ps *services.ProfileService) error {
	email := app.config.BootstrapAdminEmail
	if email == "" {
		return nil
	}

	_, err := ps.EnsureAdmin(ctx, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		app.logger.Info(ctx, "bootstrap admin not registered yet", "email", email)
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin error: %w", err)
	}
	return nil
}

// openStore returns the transactor and repositories for the configured DSN.
// PostgreSQL is migrated before use.
func (app *App) openStore(ctx context.Context) (dbx.Transactor, repomanager.RepositoryManager, error) {
	if app.config.UsesMemoryStore() {
		app.logger.Warn(ctx, "using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return s, s, nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}

	return dbx.NewSQLTransactor(db), rm, nil
}

func (app *App) openDenylist(ctx context.Context) (auth.Denylist, error) {
	if app.config.RedisAddr == "" {
		return auth.NewMemoryDenylist(nil), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	app.closers = append(app.closers, client)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	return auth.NewRedisDenylist(client), nil
}

func (app *App) openAvatarStore(ctx context.Context) (storage.AvatarStore, error) {
	if app.config.S3Bucket == "" {
		app.logger.Info(ctx, "avatar storage disabled")
		return storage.Disabled{}, nil
	}

	s, err := storage.NewS3AvatarStore(ctx, storage.S3Options{
		Region:       app.config.S3Region,
		AccessKey:    app.config.S3RootUser,
		SecretKey:    app.config.S3RootPassword,
		Bucket:       app.config.S3Bucket,
		BaseEndpoint: app.config.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("avatar storage error: %w", err)
	}
	return s, nil
}

func (app *App) newMailer() mailer.Mailer {
	if app.config.SMTPHost == "" {
		return mailer.NewLogMailer(app.logger)
	}
	return mailer.NewSMTPMailer(app.config.SMTPHost, app.config.SMTPPort,
		app.config.SMTPUser, app.config.SMTPPassword, app.config.MailFrom)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.registration.RunReaper(ctx, app.config.ReaperInterval)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.WithoutCancel(ctx), "Stopped")
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		_ = app.closers[i].Close()
	}
	app.closers = nil
}
