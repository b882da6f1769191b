package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

// InviteResolver validates invite tokens and independently supplied applications
type InviteResolver struct {
	clock  Clock
	logger *slog.Logger
}

func NewInviteResolver(clock Clock, logger *slog.Logger) *InviteResolver {
	return &InviteResolver{clock: clock, logger: logger}
}

// Resolve returns the invite for token when the caller may use it for templateID
func (r *InviteResolver) Resolve(ctx context.Context, repo repositories.Repository, token, candidateID, templateID string) (*models.AssessmentInvite, error) {
	invite, err := repo.Invite().GetByToken(ctx, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidInvite
		}
		return nil, NewUnexpectedError("resolve invite", err)
	}

	if invite.CandidateID != candidateID {
		r.logger.WarnContext(ctx, "Invite presented by another candidate",
			"invite_id", invite.ID,
			"candidate_id", candidateID)
		return nil, ErrUnauthorizedInvite
	}
	if invite.TemplateID != templateID {
		return nil, ErrInviteMismatch
	}
	if IsExpired(invite.ExpiresAt, r.clock()) {
		return nil, ErrInviteExpired
	}
	if invite.Status == models.InviteCancelled {
		return nil, ErrInviteCancelled
	}
	if invite.Status.IsFinal() {
		return nil, ErrAlreadyCompleted
	}

	return invite, nil
}

// ValidateApplication checks that applicationID belongs to the caller and to a job using templateID.
// When invite is set, the application must be for the invite's job.
func (r *InviteResolver) ValidateApplication(ctx context.Context, repo repositories.Repository, applicationID, candidateID, templateID string, invite *models.AssessmentInvite) error {
	application, err := repo.Application().GetByID(ctx, applicationID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrForbidden
		}
		return NewUnexpectedError("load application", err)
	}
	if application.CandidateID != candidateID {
		return ErrForbidden
	}

	assigned, err := repo.Template().IsAssignedToJob(ctx, templateID, application.JobID)
	if err != nil {
		return NewUnexpectedError("check job template", err)
	}
	if !assigned {
		return ErrContextMismatch
	}

	if invite != nil && invite.JobID != application.JobID {
		return ErrContextMismatch
	}
	return nil
}
