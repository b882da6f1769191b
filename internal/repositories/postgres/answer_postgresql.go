package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

func (a *AnswerPostgreSQL) ListByAttempt(ctx context.Context, attemptID string) ([]models.AttemptAnswer, error) {
	var answers []models.AttemptAnswer
	err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("created_at ASC").
		Find(&answers).Error
	if err != nil {
		return nil, translateError("list answers", err)
	}
	return answers, nil
}
