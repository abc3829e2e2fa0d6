package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/repositories"
	"go.uber.org/zap"
)

// IllustrationRepository implements repositories.IllustrationRepository
type IllustrationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewIllustrationRepository creates a new illustration repository
func NewIllustrationRepository(db *DB, logger *zap.Logger) repositories.IllustrationRepository {
	return &IllustrationRepository{db: db, logger: logger}
}

// Create inserts a new illustration
func (r *IllustrationRepository) Create(ctx context.Context, ill *models.Illustration) error {
	query := `
		INSERT INTO illustrations (id, story_id, chapter_id, image_url, prompt, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		ill.ID,
		ill.StoryID,
		nullUUID(ill.ChapterID),
		ill.ImageURL,
		ill.Prompt,
		ill.Position,
		ill.CreatedAt,
		ill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create illustration: %w", err)
	}

	r.logger.Debug("illustration created",
		zap.String("id", ill.ID.String()),
		zap.String("story_id", ill.StoryID.String()),
		zap.Int("position", ill.Position))
	return nil
}

// NextPosition returns the next free position
func (r *IllustrationRepository) NextPosition(ctx context.Context, storyID uuid.UUID, chapterID *uuid.UUID) (int, error) {
	var (
		query string
		arg   interface{}
	)
	if chapterID != nil {
		query = `SELECT COALESCE(MAX(position), 0) FROM illustrations WHERE chapter_id = $1`
		arg = *chapterID
	} else {
		query = `SELECT COALESCE(MAX(position), 0) FROM illustrations WHERE story_id = $1 AND chapter_id IS NULL`
		arg = storyID
	}

	var maxPos int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(&maxPos); err != nil {
		return 0, fmt.Errorf("failed to get illustration position: %w", err)
	}
	return maxPos + 1, nil
}

// ListByStory returns a story's illustrations ordered by position
func (r *IllustrationRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Illustration, error) {
	query := `
		SELECT id, story_id, chapter_id, image_url, COALESCE(prompt, ''), position, created_at, updated_at
		FROM illustrations
		WHERE story_id = $1
		ORDER BY position, created_at
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query illustrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Illustration
	for rows.Next() {
		ill := &models.Illustration{}
		var chapterID uuid.NullUUID
		err := rows.Scan(
			&ill.ID,
			&ill.StoryID,
			&chapterID,
			&ill.ImageURL,
			&ill.Prompt,
			&ill.Position,
			&ill.CreatedAt,
			&ill.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan illustration: %w", err)
		}
		if chapterID.Valid {
			ill.ChapterID = &chapterID.UUID
		}
		out = append(out, ill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating illustrations: %w", err)
	}
	return out, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
