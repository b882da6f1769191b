package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/services"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/utils"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/validator"
)

const serviceName = "candidate-assessment-service"

type HandlerManager struct {
	serviceManager services.ServiceManager
	attemptHandler *AttemptHandler
	authMiddleware *CasdoorAuthMiddleware
	rateLimiter    *RateLimiter
	metrics        *metrics.Metrics
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	authMiddleware *CasdoorAuthMiddleware,
	rateLimiter *RateLimiter,
	m *metrics.Metrics,
) *HandlerManager {
	return &HandlerManager{
		serviceManager: serviceManager,
		attemptHandler: NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		metrics:        m,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	if hm.metrics != nil {
		router.Use(hm.metrics.Middleware())
		router.GET("/metrics", hm.metrics.Handler())
	}
	router.GET("/health", hm.Health)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		assessments := v1.Group("/assessments")
		{
			start := []gin.HandlerFunc{hm.authMiddleware.RequireRoleMiddleware(models.RoleCandidate)}
			if hm.rateLimiter != nil {
				start = append(start, hm.rateLimiter.Middleware())
			}
			start = append(start, hm.attemptHandler.StartAttempt)
			assessments.POST("/:templateId/attempts/start", start...)
		}
	}
}

// Health reports database and cache reachability
func (hm *HandlerManager) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Checks:    map[string]string{"services": "ok"},
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if err := hm.serviceManager.HealthCheck(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Checks["services"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(status, resp)
}
