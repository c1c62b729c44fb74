// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"sync"

	"supportapp/internal/config"
	"supportapp/internal/observability"
	"supportapp/internal/serviceinterfaces"
	"supportapp/internal/services"
	"supportapp/internal/tracker"
	contextutils "supportapp/internal/utils"
)

// Service names registered in the container
const (
	ServiceMetrics  = "metrics"
	ServiceTracker  = "tracker"
	ServiceNotifier = "notifier"
	ServiceSupport  = "support"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetSupportService() (serviceinterfaces.SupportService, error)
	GetTicketTracker() (serviceinterfaces.TicketTracker, error)
	GetTicketNotifier() (serviceinterfaces.TicketNotifier, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	if !sc.cfg.TrackerConfigured() {
		sc.logger.Warn(ctx, "Issue tracker is not configured, ticket submissions will fail", map[string]interface{}{
			"tracker_enabled": sc.cfg.Tracker.Enabled,
			"base_url":        sc.cfg.Tracker.BaseURL,
			"api_token":       contextutils.MaskAPIKey(sc.cfg.Tracker.APIToken),
		})
	}

	if err := sc.startupServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to startup services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetSupportService returns the ticket submission service
func (sc *ServiceContainer) GetSupportService() (serviceinterfaces.SupportService, error) {
	return GetServiceAs[serviceinterfaces.SupportService](sc, ServiceSupport)
}

// GetTicketTracker returns the issue tracker client
func (sc *ServiceContainer) GetTicketTracker() (serviceinterfaces.TicketTracker, error) {
	return GetServiceAs[serviceinterfaces.TicketTracker](sc, ServiceTracker)
}

// GetTicketNotifier returns the ticket notifier
func (sc *ServiceContainer) GetTicketNotifier() (serviceinterfaces.TicketNotifier, error) {
	return GetServiceAs[serviceinterfaces.TicketNotifier](sc, ServiceNotifier)
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// startupServices starts all services that implement Startup
func (sc *ServiceContainer) startupServices(ctx context.Context) error {
	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Startup(context.Context) error }); ok {
			sc.logger.Info(ctx, "Starting service", map[string]interface{}{"service": name})
			if err := lifecycleService.Startup(ctx); err != nil {
				return contextutils.WrapErrorf(err, "failed to startup service %s", name)
			}
		}
	}
	return nil
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for name, service := range sc.services {
		if lifecycleService, ok := service.(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errs = append(errs, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) error {
	// Counters go to the global meter provider set up by observability
	metrics, err := observability.NewTicketMetrics(nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to register ticket metrics")
	}
	sc.services[ServiceMetrics] = metrics

	jira := tracker.NewJiraClient(sc.cfg, sc.logger, metrics)
	sc.services[ServiceTracker] = jira
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		jira.CloseIdleConnections()
		return nil
	})

	notifier := services.NewEmailNotifier(sc.cfg, sc.logger)
	sc.services[ServiceNotifier] = notifier

	supportService, err := services.NewSupportService(sc.cfg, jira, notifier, metrics, sc.logger)
	if err != nil {
		return contextutils.WrapError(err, "failed to create support service")
	}
	sc.services[ServiceSupport] = supportService
	return nil
}
