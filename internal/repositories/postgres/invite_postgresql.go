package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

type InvitePostgreSQL struct {
	db *gorm.DB
}

func NewInvitePostgreSQL(db *gorm.DB) repositories.InviteRepository {
	return &InvitePostgreSQL{db: db}
}

func (i *InvitePostgreSQL) GetByToken(ctx context.Context, token string) (*models.AssessmentInvite, error) {
	var invite models.AssessmentInvite
	if err := i.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error; err != nil {
		return nil, translateError("get invite by token", err)
	}
	return &invite, nil
}

func (i *InvitePostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentInvite, error) {
	var invite models.AssessmentInvite
	if err := i.db.WithContext(ctx).Where("id = ?", id).First(&invite).Error; err != nil {
		return nil, translateError("get invite", err)
	}
	return &invite, nil
}

func (i *InvitePostgreSQL) MarkStarted(ctx context.Context, id string) error {
	err := i.db.WithContext(ctx).
		Model(&models.AssessmentInvite{}).
		Where("id = ? AND status IN ?", id, []models.InviteStatus{models.InviteSent, models.InviteStarted}).
		Update("status", models.InviteStarted).Error
	return translateError("mark invite started", err)
}
