// Package server wires the account service together: logging, the credential
// store (PostgreSQL or in-memory), the token codec, media uploads, the
// services and the HTTP server, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/dbx"
	"github.com/dmitrijs2005/gophaccount/internal/filex"
	"github.com/dmitrijs2005/gophaccount/internal/logging"
	"github.com/dmitrijs2005/gophaccount/internal/server/auth"
	"github.com/dmitrijs2005/gophaccount/internal/server/config"
	"github.com/dmitrijs2005/gophaccount/internal/server/media"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccount/internal/server/services"

	hs "github.com/dmitrijs2005/gophaccount/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
	sessions    *services.SessionManager
	users       *services.UserService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, err := openRepositoryManager(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	uploadDir, err := filex.EnsureSubdDir(c.UploadDir)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("upload dir init error: %w", err)
	}
	c.UploadDir = uploadDir

	uploader, err := media.NewS3Uploader(ctx, c, logger)
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("media init error: %w", err)
	}

	codec := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  []byte(c.AccessTokenSecret),
		RefreshSecret: []byte(c.RefreshTokenSecret),
		AccessTTL:     c.AccessTokenValidityDuration,
		RefreshTTL:    c.RefreshTokenValidityDuration,
		Now:           time.Now,
	})

	return &App{
		config:      c,
		logger:      logger,
		repomanager: rm,
		sessions:    services.NewSessionManager(rm, codec, logger),
		users:       services.NewUserService(rm, uploader, c, logger),
	}, nil
}

// openRepositoryManager connects to PostgreSQL and applies migrations, or
// falls back to the in-memory store when no DSN is configured.
func openRepositoryManager(ctx context.Context, c *config.Config, logger logging.Logger) (repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "DATABASE_DSN is empty, using in-memory user store")
		return repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	err = dbx.PingWithBackoff(ctx, db, dbx.DefaultPingConfig, func(err error, next time.Duration) {
		logger.Warn(ctx, "database is not ready, retrying", "error", err, "next", next)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return rm, nil
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
	handler := hs.NewHandler(app.sessions, app.users, hs.Options{
		UploadDir:     app.config.UploadDir,
		MaxUploadSize: app.config.MaxUploadSize,
		CookieSecure:  app.config.CookieSecure,
	}, app.logger)

	s := hs.NewServer(app.config.EndpointAddrHTTP, hs.NewRouter(handler, app.logger), app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

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

	wg.Wait()

	if err := app.repomanager.Close(); err != nil {
		app.logger.Error(ctx, "closing repository manager", "error", err)
	}
	app.logger.Info(ctx, "App stopped")

	// flush buffered zap entries
	if s, ok := app.logger.(interface{ Sync() }); ok {
		s.Sync()
	}
}
