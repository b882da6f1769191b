package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

type ApplicationPostgreSQL struct {
	db *gorm.DB
}

func NewApplicationPostgreSQL(db *gorm.DB) repositories.ApplicationRepository {
	return &ApplicationPostgreSQL{db: db}
}

func (a *ApplicationPostgreSQL) GetByID(ctx context.Context, id string) (*models.JobApplication, error) {
	var application models.JobApplication
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&application).Error; err != nil {
		return nil, translateError("get application", err)
	}
	return &application, nil
}
