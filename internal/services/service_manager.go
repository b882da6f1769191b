package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/events"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Attempt EngineConfig

	// Randomizer overrides the default time-seeded order source
	Randomizer Randomizer
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	metrics   *metrics.Metrics
	config    ServiceManagerConfig

	// Service instances
	attemptEngine AttemptLifecycleEngine

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	config ServiceManagerConfig,
) ServiceManager {
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		metrics:   m,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(
	repo repositories.Repository,
	logger *slog.Logger,
	validator *validator.Validator,
	publisher events.EventPublisher,
	m *metrics.Metrics,
) ServiceManager {
	return NewServiceManager(repo, logger, validator, publisher, m, ServiceManagerConfig{
		Attempt: EngineConfig{MaxStartRetries: 3},
	})
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.shutdown {
		return fmt.Errorf("service manager has been shut down")
	}
	if sm.repo == nil {
		return fmt.Errorf("repository is required")
	}

	sm.logger.Info("Initializing service manager")

	randomizer := sm.config.Randomizer
	if randomizer == nil {
		randomizer = NewRandomizer(nil)
	}

	engineCfg := sm.config.Attempt
	if engineCfg.Validator == nil {
		engineCfg.Validator = sm.validator
	}

	sm.attemptEngine = NewAttemptLifecycleEngine(
		sm.repo,
		randomizer,
		sm.publisher,
		sm.metrics,
		sm.logger,
		engineCfg,
	)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Attempt() AttemptLifecycleEngine {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.attemptEngine
}

// ===== HEALTH AND LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return nil
}
