package services

import (
	"context"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartAttemptRequest = models.StartAttemptRequest
type StartAttemptResponse = models.StartAttemptResponse

// ===== SERVICE MANAGER =====

// ServiceManager owns the lifecycle of the service layer
type ServiceManager interface {
	Attempt() AttemptLifecycleEngine

	// Lifecycle management
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
