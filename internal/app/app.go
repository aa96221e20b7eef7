package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"teaching-workload/internal/config"
	"teaching-workload/internal/database"
	"teaching-workload/internal/handler"
	"teaching-workload/internal/middleware"
	"teaching-workload/internal/repository"
	"teaching-workload/internal/router"
	"teaching-workload/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// New wires the application. level is the handler level installed by main;
// it is raised or lowered to LOG_LEVEL once the config is known.
func New(level *slog.LevelVar) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level != nil {
		level.Set(cfg.LogLevel)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	semesterRepo := repository.NewSemesterRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)
	slog.Info("database ready")

	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	tokens, err := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	auditService := service.NewAuditService(auditRepo)
	authService := service.NewAuthService(userRepo, hasher, tokens, auditService)
	userService := service.NewUserService(userRepo, hasher, auditService)
	semesterService := service.NewSemesterService(semesterRepo)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = service.NewControllerSeeder(userRepo, hasher, auditService, cfg.InitialControllerUser, cfg.InitialControllerPass).Run(seedCtx)
	seedCancel()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed initial controller: %w", err)
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		User:     handler.NewUserHandler(userService),
		Semester: handler.NewSemesterHandler(semesterService),
		Audit:    handler.NewAuditHandler(auditService),
	}, db)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			db.Close,
		},
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-serveErr:
		if ok {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-stop:
		slog.Info("shutdown requested", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, fn := range a.cleanupFuncs {
		fn()
	}
}
