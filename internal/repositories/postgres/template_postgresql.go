package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/cache"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
	"github.com/SAP-F-2025/candidate-assessment-service/internal/repositories"
)

type TemplatePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	ttl          time.Duration
}

func NewTemplatePostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager, ttl time.Duration) repositories.TemplateRepository {
	if ttl <= 0 {
		ttl = cache.TemplateCacheConfig.TTL
	}
	return &TemplatePostgreSQL{
		db:           db,
		cacheManager: cacheManager,
		ttl:          ttl,
	}
}

func (t *TemplatePostgreSQL) GetByID(ctx context.Context, id string) (*models.AssessmentTemplate, error) {
	var template models.AssessmentTemplate
	err := t.cacheManager.Template.CacheOrExecute(ctx, fmt.Sprintf("id:%s", id), &template, t.ttl, func() (interface{}, error) {
		var dbTemplate models.AssessmentTemplate
		if err := t.db.WithContext(ctx).Where("id = ?", id).First(&dbTemplate).Error; err != nil {
			return nil, translateError("get template", err)
		}
		return &dbTemplate, nil
	})
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (t *TemplatePostgreSQL) GetActiveQuestions(ctx context.Context, templateID string) ([]models.AssessmentQuestion, error) {
	var questions []models.AssessmentQuestion
	err := t.cacheManager.Template.CacheOrExecute(ctx, fmt.Sprintf("questions:%s", templateID), &questions, t.ttl, func() (interface{}, error) {
		var dbQuestions []models.AssessmentQuestion
		err := t.db.WithContext(ctx).
			Where("template_id = ? AND is_active = ?", templateID, true).
			Order("position ASC, created_at ASC").
			Find(&dbQuestions).Error
		if err != nil {
			return nil, translateError("list active questions", err)
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (t *TemplatePostgreSQL) IsAssignedToJob(ctx context.Context, templateID, jobID string) (bool, error) {
	var assigned bool
	key := fmt.Sprintf("job_template:%s:%s", jobID, templateID)
	err := t.cacheManager.Exists.CacheOrExecute(ctx, key, &assigned, cache.ExistsCacheConfig.TTL, func() (interface{}, error) {
		var count int64
		err := t.db.WithContext(ctx).
			Model(&models.JobAssessment{}).
			Where("job_id = ? AND template_id = ?", jobID, templateID).
			Count(&count).Error
		if err != nil {
			return nil, translateError("check job template", err)
		}
		return count > 0, nil
	})
	return assigned, err
}
