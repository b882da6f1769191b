package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/services"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/utils"
)

type ErrorResponse = models.ErrorResponse

// BaseHandler carries the logging and error helpers shared by handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// respondError writes an error body that must never be cached
func respondError(c *gin.Context, status int, body ErrorResponse) {
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(status, body)
}

// statusForKind maps lifecycle error kinds to HTTP status codes
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindTemplateNotFound, services.KindAttemptNotFound:
		return http.StatusNotFound
	case services.KindInviteExpired, services.KindInviteCancelled:
		return http.StatusGone
	case services.KindMissingContext,
		services.KindInvalidInvite,
		services.KindInviteMismatch,
		services.KindContextMismatch,
		services.KindAlreadyCompleted,
		services.KindAttemptLimitReached,
		services.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var attemptErr *services.AttemptError
	if !errors.As(err, &attemptErr) || attemptErr.Kind == services.KindUnexpected {
		h.LogError(c, err, "Unexpected service error")
		respondError(c, http.StatusInternalServerError, ErrorResponse{Error: services.ErrUnexpected.Message})
		return
	}

	body := ErrorResponse{Error: attemptErr.Message}
	if attemptErr.Kind == services.KindValidation {
		body.Details = attemptErr.Err
	}
	respondError(c, statusForKind(attemptErr.Kind), body)
}
