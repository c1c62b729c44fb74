// Package main provides the entry point for the support ticket backend server.
// It sets up observability, the service container and the HTTP routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"supportapp/internal/config"
	"supportapp/internal/di"
	"supportapp/internal/handlers"
	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"
	"supportapp/internal/version"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	supportService, err := container.GetSupportService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get support service")
	}

	cfg := container.GetConfig()
	router := handlers.NewRouter(cfg, supportService, container.GetLogger())

	return &Application{
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: config.ServerReadHeaderTimeout,
		},
	}, nil
}

// Handler returns the HTTP handler serving the API
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run serves until the server is shut down
func (a *Application) Run() error {
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return contextutils.WrapError(err, "server failed")
	}
	return nil
}

// Shutdown drains in-flight requests, then shuts down the services
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		return contextutils.WrapError(err, "failed to shutdown http server")
	}
	return a.container.Shutdown(ctx)
}

func main() {
	ctx := context.Background()

	// Setup graceful shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.OpenTelemetry.ServiceVersion = version.Version

	// Setup observability (tracing/metrics/logging)
	providers, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer shutdownCancel()

		_ = logger.Sync()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down telemetry providers: %v\n", err)
		}
	}()

	logger.Info(ctx, "Starting support backend service", map[string]interface{}{
		"port":     cfg.Server.Port,
		"logLevel": cfg.Server.LogLevel,
		"version":  version.Version,
	})

	// Initialize dependency injection container
	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		os.Exit(1)
	}

	// Start application in a goroutine
	appErr := make(chan error, 1)
	go func() {
		appErr <- app.Run()
	}()

	// Wait for shutdown signal or application error
	select {
	case <-shutdownCh:
		logger.Info(ctx, "Received shutdown signal, shutting down gracefully", nil)
	case err := <-appErr:
		if err != nil {
			logger.Error(ctx, "Application failed", err, nil)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(ctx, "Shutdown completed successfully", nil)
}
