package repositories

import (
	"context"

	"github.com/SAP-F-2025/candidate-assessment-service/internal/models"
)

// UserRepository interface for user operations (identity is owned by Casdoor)
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
