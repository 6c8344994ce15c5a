package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/avolkov/mediatube/internal/db"
	"github.com/avolkov/mediatube/internal/handlers"
	"github.com/avolkov/mediatube/internal/handlers/middleware"
	"github.com/avolkov/mediatube/internal/logger"
	"github.com/avolkov/mediatube/internal/media"
	"github.com/avolkov/mediatube/internal/repository/mongodb"
	"github.com/avolkov/mediatube/internal/service/auth"
	"github.com/avolkov/mediatube/internal/service/auth/tokenmanager"
	"github.com/avolkov/mediatube/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to mongo and ensure indexes
	database, err := db.ConnectAndMigrate(ctx, c.MongoURI, c.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := mongodb.NewStorage(database)

	// Initialize media uploader
	uploader, err := media.NewCloudinary(c.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("error while creating media uploader. Err: %w", err)
	}

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessSecret:  c.AccessTokenSecret,
		RefreshSecret: c.RefreshTokenSecret,
		AccessTTL:     c.AccessTokenTTL,
		RefreshTTL:    c.RefreshTokenTTL,
	}, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(nil, storage, uploader, log)

	// Initialize handlers and router
	mux := handlers.NewRouter(
		handlers.NewAuth(authService),
		handlers.NewUser(userService),
		middleware.Auth(authService),
		middleware.Logger(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
