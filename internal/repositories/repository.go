package repositories

import "context"

// Repository groups every store the attempt lifecycle touches
type Repository interface {
	// Template domain (read-only)
	Template() TemplateRepository

	// Invite and application context
	Invite() InviteRepository
	Application() ApplicationRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// User domain (read-only, backed by Casdoor)
	User() UserRepository

	// Transaction support. Sub-repositories of the Repository passed to fn are bound to the transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
