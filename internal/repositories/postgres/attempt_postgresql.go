package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

// ===== READS =====

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, translateError("get attempt", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByInvite(ctx context.Context, inviteID, candidateID, templateID string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := a.db.WithContext(ctx).
		Where("invite_id = ? AND candidate_id = ? AND template_id = ?", inviteID, candidateID, templateID).
		First(&attempt).Error
	if err != nil {
		return nil, translateError("get attempt by invite", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetLatestOpen(ctx context.Context, candidateID, templateID string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := a.db.WithContext(ctx).
		Where("candidate_id = ? AND template_id = ?", candidateID, templateID).
		Where("status NOT IN ?", models.FinalAttemptStatuses).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, translateError("get open attempt", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountFinal(ctx context.Context, candidateID, templateID string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("candidate_id = ? AND template_id = ?", candidateID, templateID).
		Where("status IN ?", models.FinalAttemptStatuses).
		Count(&count).Error
	if err != nil {
		return 0, translateError("count final attempts", err)
	}
	return count, nil
}

// ===== WRITES =====

// LockCandidateTemplate takes a transaction-scoped advisory lock; outside a transaction it is released immediately
func (a *AttemptPostgreSQL) LockCandidateTemplate(ctx context.Context, candidateID, templateID string) error {
	err := a.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(candidateID, templateID)).Error
	return translateError("lock candidate template", err)
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.AssessmentAttempt) error {
	return translateError("create attempt", a.db.WithContext(ctx).Create(attempt).Error)
}

func (a *AttemptPostgreSQL) Patch(ctx context.Context, id string, patch repositories.AttemptPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	updates := map[string]interface{}{}
	if patch.ApplicationID != nil {
		updates["application_id"] = *patch.ApplicationID
	}
	if patch.ExpiresAt != nil {
		// a stored deadline always wins
		updates["expires_at"] = gorm.Expr("COALESCE(expires_at, ?)", *patch.ExpiresAt)
	}
	if len(patch.FlagsJSON) > 0 {
		updates["flags_json"] = patch.FlagsJSON
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.StartedAt != nil {
		updates["started_at"] = *patch.StartedAt
	}
	if patch.IPAddress != nil {
		updates["ip_address"] = *patch.IPAddress
	}
	if patch.UserAgent != nil {
		updates["user_agent"] = *patch.UserAgent
	}

	result := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return translateError("patch attempt", result.Error)
	}
	if result.RowsAffected == 0 {
		return translateError("patch attempt", gorm.ErrRecordNotFound)
	}
	return nil
}

func (a *AttemptPostgreSQL) ReleaseInvite(ctx context.Context, attemptID string) error {
	err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("id = ?", attemptID).
		Update("invite_id", nil).Error
	return translateError("release invite", err)
}
