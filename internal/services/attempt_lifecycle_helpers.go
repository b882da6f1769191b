package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/events"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

// startContext is everything a decision branch needs inside the transaction
type startContext struct {
	tx         repositories.Repository
	in         StartAttemptInput
	template   *models.AssessmentTemplate
	questions  []models.AssessmentQuestion
	finalCount int64
	now        time.Time
}

type startOutcome struct {
	attempt    *models.AssessmentAttempt
	meta       models.AttemptMeta
	reused     bool
	superseded *models.AssessmentAttempt
}

func (o *startOutcome) label() string {
	switch {
	case o.reused:
		return "reused"
	case o.superseded != nil:
		return "superseded"
	default:
		return "created"
	}
}

type createParams struct {
	ApplicationID *string
	InviteID      *string
	// Supersedes is the expired attempt whose invite binding moves to the new attempt
	Supersedes *models.AssessmentAttempt
}

// checkRetryLimit runs before any attempt lookup
func checkRetryLimit(template *models.AssessmentTemplate, finalCount int64) error {
	if !template.AllowRetry && finalCount > 0 {
		return ErrAlreadyCompleted
	}
	if template.MaxAttempts > 0 && finalCount >= int64(template.MaxAttempts) {
		return ErrAttemptLimitReached
	}
	return nil
}

// ===== TRANSACTION STEPS =====

// createAttempt inserts an IN_PROGRESS attempt; the caller holds the pair lock, so finalCount+1 is reserved
func (e *attemptLifecycleEngine) createAttempt(ctx context.Context, sc *startContext, p createParams) (*startOutcome, error) {
	if p.Supersedes != nil && p.Supersedes.InviteID != nil {
		if err := sc.tx.Attempt().ReleaseInvite(ctx, p.Supersedes.ID); err != nil {
			return nil, NewUnexpectedError("release superseded invite", err)
		}
	}

	ensured, err := e.metaCache.Ensure(nil, sc.questions, sc.template.ShuffleQuestions)
	if err != nil {
		return nil, NewUnexpectedError("compute attempt order", err)
	}

	now := sc.now
	attempt := &models.AssessmentAttempt{
		ID:            uuid.NewString(),
		CandidateID:   sc.in.CandidateID,
		TemplateID:    sc.template.ID,
		ApplicationID: copyString(p.ApplicationID),
		InviteID:      copyString(p.InviteID),
		Status:        models.AttemptInProgress,
		AttemptNumber: int(sc.finalCount) + 1,
		StartedAt:     &now,
		ExpiresAt:     sc.template.Deadline(now),
		IPAddress:     optionalString(sc.in.IPAddress),
		UserAgent:     optionalString(sc.in.UserAgent),
		FlagsJSON:     ensured.Raw,
	}

	if err := sc.tx.Attempt().Create(ctx, attempt); err != nil {
		if repositories.IsDuplicateKeyError(err) {
			return nil, err
		}
		return nil, NewUnexpectedError("create attempt", err)
	}

	if attempt.InviteID != nil {
		if err := sc.tx.Invite().MarkStarted(ctx, *attempt.InviteID); err != nil {
			return nil, NewUnexpectedError("mark invite started", err)
		}
	}

	return &startOutcome{
		attempt:    attempt,
		meta:       ensured.Meta,
		superseded: p.Supersedes,
	}, nil
}

// reuseAttempt fills in only what the attempt is missing
func (e *attemptLifecycleEngine) reuseAttempt(ctx context.Context, sc *startContext, attempt *models.AssessmentAttempt, applicationID *string) (*startOutcome, error) {
	var patch repositories.AttemptPatch

	if applicationID != nil && (attempt.ApplicationID == nil || *attempt.ApplicationID != *applicationID) {
		patch.ApplicationID = copyString(applicationID)
		attempt.ApplicationID = copyString(applicationID)
	}

	if attempt.ExpiresAt == nil {
		if deadline := sc.template.Deadline(sc.now); deadline != nil {
			patch.ExpiresAt = deadline
			attempt.ExpiresAt = deadline
		}
	}

	ensured, err := e.metaCache.Ensure(attempt.FlagsJSON, sc.questions, sc.template.ShuffleQuestions)
	if err != nil {
		return nil, NewUnexpectedError("compute attempt order", err)
	}
	if ensured.Computed {
		patch.FlagsJSON = ensured.Raw
		attempt.FlagsJSON = ensured.Raw
	}

	if attempt.Status == models.AttemptNotStarted {
		status := models.AttemptInProgress
		now := sc.now
		patch.Status = &status
		patch.StartedAt = &now
		patch.IPAddress = optionalString(sc.in.IPAddress)
		patch.UserAgent = optionalString(sc.in.UserAgent)

		attempt.Status = status
		attempt.StartedAt = &now
		attempt.IPAddress = patch.IPAddress
		attempt.UserAgent = patch.UserAgent
	}

	if err := sc.tx.Attempt().Patch(ctx, attempt.ID, patch); err != nil {
		return nil, NewUnexpectedError("patch attempt", err)
	}

	if attempt.InviteID != nil {
		if err := sc.tx.Invite().MarkStarted(ctx, *attempt.InviteID); err != nil {
			return nil, NewUnexpectedError("mark invite started", err)
		}
	}

	return &startOutcome{attempt: attempt, meta: ensured.Meta, reused: true}, nil
}

// ===== RESPONSE =====

func (e *attemptLifecycleEngine) buildResponse(ctx context.Context, template *models.AssessmentTemplate, questions []models.AssessmentQuestion, outcome *startOutcome) (*models.StartAttemptResponse, error) {
	views, err := BuildQuestionViews(questions, outcome.meta)
	if err != nil {
		return nil, NewUnexpectedError("build questions", err)
	}

	// a freshly created attempt never carries answers over
	savedAnswers, savedTimeSpent := e.projector.Empty()
	if outcome.reused {
		savedAnswers, savedTimeSpent, err = e.projector.Project(ctx, e.repo.Answer(), outcome.attempt.ID)
		if err != nil {
			return nil, NewUnexpectedError("load saved answers", err)
		}
	}

	return &models.StartAttemptResponse{
		AttemptID:      outcome.attempt.ID,
		Questions:      views,
		ExpiresAt:      outcome.attempt.ExpiresAt,
		TimeLimit:      template.TimeLimit,
		Reused:         outcome.reused,
		SavedAnswers:   savedAnswers,
		SavedTimeSpent: savedTimeSpent,
	}, nil
}

// publish runs after commit; failures are logged only
func (e *attemptLifecycleEngine) publish(ctx context.Context, outcome *startOutcome) {
	if e.publisher == nil {
		return
	}

	eventType := events.AttemptStarted
	data := events.AttemptEventData{
		AttemptID:     outcome.attempt.ID,
		CandidateID:   outcome.attempt.CandidateID,
		TemplateID:    outcome.attempt.TemplateID,
		ApplicationID: outcome.attempt.ApplicationID,
		InviteID:      outcome.attempt.InviteID,
		AttemptNumber: outcome.attempt.AttemptNumber,
		ExpiresAt:     outcome.attempt.ExpiresAt,
	}
	switch {
	case outcome.reused:
		eventType = events.AttemptResumed
	case outcome.superseded != nil:
		eventType = events.AttemptSuperseded
		data.SupersededAttemptID = outcome.superseded.ID
	}

	if err := e.publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish attempt event",
			"event_type", eventType,
			"attempt_id", outcome.attempt.ID,
			"error", err)
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
