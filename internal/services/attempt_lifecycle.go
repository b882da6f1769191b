package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/events"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/metrics"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/validator"
)

// StartAttemptInput is a start request after authentication
type StartAttemptInput struct {
	TemplateID  string
	CandidateID string

	ApplicationID string
	Token         string
	AttemptID     string

	IPAddress string
	UserAgent string
}

func (in StartAttemptInput) hasContext() bool {
	return in.ApplicationID != "" || in.Token != "" || in.AttemptID != ""
}

// AttemptLifecycleEngine decides whether a start request creates, resumes or replaces an attempt
type AttemptLifecycleEngine interface {
	Start(ctx context.Context, in StartAttemptInput) (*models.StartAttemptResponse, error)
}

type EngineConfig struct {
	// MaxStartRetries bounds how often a start is re-run after an invite uniqueness conflict
	MaxStartRetries int
	Clock           Clock
	// Validator checks the template id for callers outside the HTTP layer; optional
	Validator *validator.Validator
}

type attemptLifecycleEngine struct {
	repo       repositories.Repository
	invites    *InviteResolver
	metaCache  *MetaCache
	projector  *AnswerProjector
	publisher  events.EventPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      Clock
	validator  *validator.Validator
	maxRetries int
}

func NewAttemptLifecycleEngine(
	repo repositories.Repository,
	randomizer Randomizer,
	publisher events.EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg EngineConfig,
) AttemptLifecycleEngine {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	maxRetries := cfg.MaxStartRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	return &attemptLifecycleEngine{
		repo:       repo,
		invites:    NewInviteResolver(clock, logger),
		metaCache:  NewMetaCache(randomizer),
		projector:  NewAnswerProjector(logger),
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		clock:      clock,
		validator:  cfg.Validator,
		maxRetries: maxRetries,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (e *attemptLifecycleEngine) Start(ctx context.Context, in StartAttemptInput) (*models.StartAttemptResponse, error) {
	in = normalizeInput(in)

	e.logger.InfoContext(ctx, "Starting assessment attempt",
		"template_id", in.TemplateID,
		"candidate_id", in.CandidateID,
		"has_token", in.Token != "",
		"has_application", in.ApplicationID != "",
		"attempt_id", in.AttemptID)

	resp, err := e.start(ctx, in)
	if err != nil {
		e.reportFailure(ctx, in, err)
		return nil, err
	}
	return resp, nil
}

func (e *attemptLifecycleEngine) start(ctx context.Context, in StartAttemptInput) (*models.StartAttemptResponse, error) {
	if in.CandidateID == "" {
		return nil, ErrUnauthenticated
	}
	if e.validator != nil {
		if errs := e.validator.ValidateID("templateId", in.TemplateID); errs != nil {
			return nil, NewValidationError(errs)
		}
	}
	if !in.hasContext() {
		return nil, ErrMissingContext
	}

	template, err := e.repo.Template().GetByID(ctx, in.TemplateID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, NewUnexpectedError("load template", err)
	}
	if !template.IsActive {
		return nil, ErrTemplateNotFound
	}

	questions, err := e.repo.Template().GetActiveQuestions(ctx, template.ID)
	if err != nil {
		return nil, NewUnexpectedError("load questions", err)
	}

	var outcome *startOutcome
	for try := 1; ; try++ {
		outcome, err = e.startOnce(ctx, in, template, questions)
		if err == nil {
			break
		}
		if !repositories.IsDuplicateKeyError(err) {
			return nil, normalizeError("start attempt", err)
		}
		if try >= e.maxRetries {
			return nil, NewUnexpectedError("start attempt", err)
		}
		e.metrics.ObserveRetry()
		e.logger.InfoContext(ctx, "Invite already bound by a concurrent start, retrying",
			"template_id", in.TemplateID,
			"candidate_id", in.CandidateID,
			"try", try)
	}

	resp, err := e.buildResponse(ctx, template, questions, outcome)
	if err != nil {
		return nil, err
	}

	e.metrics.ObserveDecision(outcome.label())
	e.publish(ctx, outcome)

	e.logger.InfoContext(ctx, "Assessment attempt ready",
		"attempt_id", outcome.attempt.ID,
		"template_id", template.ID,
		"candidate_id", in.CandidateID,
		"decision", outcome.label(),
		"attempt_number", outcome.attempt.AttemptNumber)

	return resp, nil
}

// startOnce evaluates the decision and applies it in a single transaction
func (e *attemptLifecycleEngine) startOnce(ctx context.Context, in StartAttemptInput, template *models.AssessmentTemplate, questions []models.AssessmentQuestion) (*startOutcome, error) {
	var outcome *startOutcome
	err := e.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Attempt().LockCandidateTemplate(ctx, in.CandidateID, template.ID); err != nil {
			return NewUnexpectedError("lock attempts", err)
		}

		finalCount, err := tx.Attempt().CountFinal(ctx, in.CandidateID, template.ID)
		if err != nil {
			return NewUnexpectedError("count final attempts", err)
		}
		if err := checkRetryLimit(template, finalCount); err != nil {
			return err
		}

		sc := &startContext{
			tx:         tx,
			in:         in,
			template:   template,
			questions:  questions,
			finalCount: finalCount,
			now:        e.clock(),
		}

		switch {
		case in.Token != "":
			outcome, err = e.startWithToken(ctx, sc)
		case in.AttemptID != "":
			outcome, err = e.startWithAttemptID(ctx, sc)
		default:
			outcome, err = e.startFallback(ctx, sc)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ===== DECISION BRANCHES =====

func (e *attemptLifecycleEngine) startWithToken(ctx context.Context, sc *startContext) (*startOutcome, error) {
	invite, err := e.invites.Resolve(ctx, sc.tx, sc.in.Token, sc.in.CandidateID, sc.template.ID)
	if err != nil {
		return nil, err
	}
	if sc.in.ApplicationID != "" {
		if err := e.invites.ValidateApplication(ctx, sc.tx, sc.in.ApplicationID, sc.in.CandidateID, sc.template.ID, invite); err != nil {
			return nil, err
		}
	}
	// the invite's application always wins
	applicationID := invite.ApplicationID

	existing, err := sc.tx.Attempt().GetByInvite(ctx, invite.ID, sc.in.CandidateID, sc.template.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, NewUnexpectedError("load invite attempt", err)
	}
	if existing == nil {
		return e.createAttempt(ctx, sc, createParams{
			ApplicationID: &applicationID,
			InviteID:      &invite.ID,
		})
	}
	return e.continueExisting(ctx, sc, existing, &applicationID)
}

func (e *attemptLifecycleEngine) startWithAttemptID(ctx context.Context, sc *startContext) (*startOutcome, error) {
	existing, err := sc.tx.Attempt().GetByID(ctx, sc.in.AttemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, NewUnexpectedError("load attempt", err)
	}
	if existing.CandidateID != sc.in.CandidateID {
		return nil, ErrForbidden
	}
	if existing.TemplateID != sc.template.ID {
		return nil, ErrContextMismatch
	}

	applicationID, err := e.applicationFor(ctx, sc, existing)
	if err != nil {
		return nil, err
	}
	return e.continueExisting(ctx, sc, existing, applicationID)
}

// startFallback reuses the pair's open attempt when present so a second live attempt is never created
func (e *attemptLifecycleEngine) startFallback(ctx context.Context, sc *startContext) (*startOutcome, error) {
	open, err := sc.tx.Attempt().GetLatestOpen(ctx, sc.in.CandidateID, sc.template.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, NewUnexpectedError("load open attempt", err)
	}

	applicationID, err := e.applicationFor(ctx, sc, open)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return e.continueExisting(ctx, sc, open, applicationID)
	}

	return e.createAttempt(ctx, sc, createParams{ApplicationID: applicationID})
}

// applicationFor validates the requested application against the attempt's invite, if any.
// An invite-bound attempt keeps the invite's application.
func (e *attemptLifecycleEngine) applicationFor(ctx context.Context, sc *startContext, attempt *models.AssessmentAttempt) (*string, error) {
	var invite *models.AssessmentInvite
	if attempt != nil && attempt.InviteID != nil {
		var err error
		invite, err = sc.tx.Invite().GetByID(ctx, *attempt.InviteID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return nil, NewUnexpectedError("load attempt invite", err)
		}
	}

	if sc.in.ApplicationID != "" {
		if err := e.invites.ValidateApplication(ctx, sc.tx, sc.in.ApplicationID, sc.in.CandidateID, sc.template.ID, invite); err != nil {
			return nil, err
		}
	}

	switch {
	case invite != nil && invite.ApplicationID != "":
		applicationID := invite.ApplicationID
		return &applicationID, nil
	case sc.in.ApplicationID != "":
		applicationID := sc.in.ApplicationID
		return &applicationID, nil
	}
	return nil, nil
}

// continueExisting rejects, supersedes or reuses an attempt found by any branch
func (e *attemptLifecycleEngine) continueExisting(ctx context.Context, sc *startContext, existing *models.AssessmentAttempt, applicationID *string) (*startOutcome, error) {
	if existing.Status.IsFinal() {
		return nil, ErrAlreadyCompleted
	}

	if IsExpired(existing.ExpiresAt, sc.now) {
		if applicationID == nil {
			applicationID = existing.ApplicationID
		}
		return e.createAttempt(ctx, sc, createParams{
			ApplicationID: applicationID,
			InviteID:      existing.InviteID,
			Supersedes:    existing,
		})
	}

	return e.reuseAttempt(ctx, sc, existing, applicationID)
}

func normalizeInput(in StartAttemptInput) StartAttemptInput {
	in.TemplateID = strings.TrimSpace(in.TemplateID)
	in.ApplicationID = strings.TrimSpace(in.ApplicationID)
	// tokens are opaque and matched exactly; only a blank token counts as absent
	if strings.TrimSpace(in.Token) == "" {
		in.Token = ""
	}
	in.AttemptID = strings.TrimSpace(in.AttemptID)
	return in
}

// normalizeError keeps lifecycle errors and wraps everything else as unexpected
func normalizeError(op string, err error) error {
	var attemptErr *AttemptError
	if errors.As(err, &attemptErr) {
		return err
	}
	return NewUnexpectedError(op, err)
}

func (e *attemptLifecycleEngine) reportFailure(ctx context.Context, in StartAttemptInput, err error) {
	kind := KindOf(err)
	e.metrics.ObserveDecision(strings.ToLower(string(kind)))

	if kind == KindUnexpected {
		e.logger.ErrorContext(ctx, "Failed to start assessment attempt",
			"template_id", in.TemplateID,
			"candidate_id", in.CandidateID,
			"error", err)
		return
	}
	e.logger.InfoContext(ctx, "Assessment attempt start rejected",
		"template_id", in.TemplateID,
		"candidate_id", in.CandidateID,
		"reason", kind)
}
