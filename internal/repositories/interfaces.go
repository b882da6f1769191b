package repositories

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// TemplateRepository reads templates and their active question sets
type TemplateRepository interface {
	GetByID(ctx context.Context, id string) (*models.AssessmentTemplate, error)
	// GetActiveQuestions returns active questions in authoring order
	GetActiveQuestions(ctx context.Context, templateID string) ([]models.AssessmentQuestion, error)
	IsAssignedToJob(ctx context.Context, templateID, jobID string) (bool, error)
}

type InviteRepository interface {
	GetByToken(ctx context.Context, token string) (*models.AssessmentInvite, error)
	GetByID(ctx context.Context, id string) (*models.AssessmentInvite, error)
	// MarkStarted moves a SENT or STARTED invite to STARTED. Other statuses are left untouched.
	MarkStarted(ctx context.Context, id string) error
}

type ApplicationRepository interface {
	GetByID(ctx context.Context, id string) (*models.JobApplication, error)
}

// AttemptPatch lists the fields a resume may fill in. Nil fields are left unchanged.
type AttemptPatch struct {
	ApplicationID *string
	ExpiresAt     *time.Time // applied only when the stored value is NULL
	FlagsJSON     datatypes.JSON
	Status        *models.AttemptStatus
	StartedAt     *time.Time
	IPAddress     *string
	UserAgent     *string
}

// IsEmpty reports whether the patch would change nothing
func (p AttemptPatch) IsEmpty() bool {
	return p.ApplicationID == nil && p.ExpiresAt == nil && len(p.FlagsJSON) == 0 &&
		p.Status == nil && p.StartedAt == nil && p.IPAddress == nil && p.UserAgent == nil
}

// AttemptRepository stores attempts. invite_id must be unique across rows holding a non-null value.
type AttemptRepository interface {
	GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error)
	GetByInvite(ctx context.Context, inviteID, candidateID, templateID string) (*models.AssessmentAttempt, error)
	// GetLatestOpen returns the newest non-final attempt for the pair
	GetLatestOpen(ctx context.Context, candidateID, templateID string) (*models.AssessmentAttempt, error)
	CountFinal(ctx context.Context, candidateID, templateID string) (int64, error)

	// LockCandidateTemplate serializes writers for the pair until the surrounding transaction ends
	LockCandidateTemplate(ctx context.Context, candidateID, templateID string) error

	// Create returns ErrDuplicateKey when another attempt already holds the invite
	Create(ctx context.Context, attempt *models.AssessmentAttempt) error
	Patch(ctx context.Context, id string, patch AttemptPatch) error
	ReleaseInvite(ctx context.Context, attemptID string) error
}

type AnswerRepository interface {
	ListByAttempt(ctx context.Context, attemptID string) ([]models.AttemptAnswer, error)
}
