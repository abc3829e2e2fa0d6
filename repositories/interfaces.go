package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
)

// ErrNotFound is wrapped by repository lookups that match no row
var ErrNotFound = errors.New("record not found")

// TransactionManager runs repository calls inside one database transaction
type TransactionManager interface {
	// InTransaction commits if fn succeeds and rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// StoryRepository reads the platform's story data. The gateway never writes it.
type StoryRepository interface {
	// GetByID retrieves a story by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)

	// GetContext loads a story with its universe, cast and chapters ordered by number
	GetContext(ctx context.Context, id uuid.UUID) (*models.StoryContext, error)
}

// IllustrationRepository persists generated illustrations
type IllustrationRepository interface {
	// Create inserts a new illustration
	Create(ctx context.Context, illustration *models.Illustration) error

	// NextPosition returns max(position)+1 within the chapter, or within the
	// story's chapterless illustrations when chapterID is nil
	NextPosition(ctx context.Context, storyID uuid.UUID, chapterID *uuid.UUID) (int, error)

	// ListByStory returns a story's illustrations ordered by position
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Illustration, error)
}

// GenerationLogRepository stores the AI dispatch audit trail
type GenerationLogRepository interface {
	// Insert appends one entry
	Insert(ctx context.Context, entry *models.GenerationLog) error

	// DeleteOlderThan prunes entries past the retention period
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Repositories holds all repository instances
type Repositories struct {
	Stories        StoryRepository
	Illustrations  IllustrationRepository
	GenerationLogs GenerationLogRepository
}
