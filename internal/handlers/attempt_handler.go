package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/services"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/utils"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptEngine services.AttemptLifecycleEngine
	validator     *validator.Validator
}

func NewAttemptHandler(
	attemptEngine services.AttemptLifecycleEngine,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:   NewBaseHandler(logger),
		attemptEngine: attemptEngine,
		validator:     validator,
	}
}

// StartAttempt creates, resumes or replaces the caller's attempt for a template
// @Summary Start assessment attempt
// @Description Starts or resumes an attempt using an invite token, an application or an attempt id
// @Tags attempts
// @Accept json
// @Produce json
// @Param templateId path string true "Template ID"
// @Param attempt body services.StartAttemptRequest false "Start context"
// @Success 200 {object} services.StartAttemptResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /assessments/{templateId}/attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	templateID := c.Param("templateId")
	h.LogRequest(c, "Starting assessment attempt", "template_id", templateID)

	if errs := h.validator.ValidateID("templateId", templateID); errs != nil {
		h.handleServiceError(c, services.NewValidationError(errs))
		return
	}

	// an absent or malformed body is treated as an empty start context
	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.GetLogger(c, h.logger).Debug("Ignoring unreadable start body", "error", err)
		req = services.StartAttemptRequest{}
	}

	if errs := h.validator.Validate(&req); errs != nil {
		h.handleServiceError(c, services.NewValidationError(errs))
		return
	}

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		h.handleServiceError(c, services.ErrUnauthenticated)
		return
	}

	resp, err := h.attemptEngine.Start(c.Request.Context(), services.StartAttemptInput{
		TemplateID:    templateID,
		CandidateID:   userID,
		ApplicationID: req.ApplicationID,
		Token:         req.Token,
		AttemptID:     req.AttemptID,
		IPAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}
