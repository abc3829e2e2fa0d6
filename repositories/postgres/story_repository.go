package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/repositories"
	"go.uber.org/zap"
)

// StoryRepository implements repositories.StoryRepository
type StoryRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStoryRepository creates a new story repository
func NewStoryRepository(db *DB, logger *zap.Logger) repositories.StoryRepository {
	return &StoryRepository{db: db, logger: logger}
}

// GetByID retrieves a story by ID
func (r *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	query := `
		SELECT id, author_id, universe_id, title, COALESCE(description, ''), rating, created_at, updated_at
		FROM stories
		WHERE id = $1
	`

	story := &models.Story{}
	var universeID uuid.NullUUID

	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&story.ID,
		&story.AuthorID,
		&universeID,
		&story.Title,
		&story.Description,
		&story.Rating,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("story %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}

	if universeID.Valid {
		story.UniverseID = &universeID.UUID
	}
	return story, nil
}

// GetContext loads the story, its universe, cast and chapters
func (r *StoryRepository) GetContext(ctx context.Context, id uuid.UUID) (*models.StoryContext, error) {
	story, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sc := &models.StoryContext{Story: *story}

	if story.UniverseID != nil {
		universe, err := r.getUniverse(ctx, *story.UniverseID)
		if err != nil {
			return nil, err
		}
		sc.Universe = universe
	}

	if sc.Characters, err = r.listCharacters(ctx, id); err != nil {
		return nil, err
	}
	if sc.Chapters, err = r.listChapters(ctx, id); err != nil {
		return nil, err
	}

	r.logger.Debug("story context loaded",
		zap.String("story_id", id.String()),
		zap.Int("characters", len(sc.Characters)),
		zap.Int("chapters", len(sc.Chapters)))

	return sc, nil
}

// getUniverse returns nil when the referenced universe is gone
func (r *StoryRepository) getUniverse(ctx context.Context, id uuid.UUID) (*models.Universe, error) {
	query := `
		SELECT id, name, COALESCE(description, '')
		FROM universes
		WHERE id = $1
	`

	u := &models.Universe{}
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get universe: %w", err)
	}
	return u, nil
}

func (r *StoryRepository) listCharacters(ctx context.Context, storyID uuid.UUID) ([]models.StoryCharacter, error) {
	query := `
		SELECT c.id, c.name, COALESCE(sc.role, ''), COALESCE(c.description, '')
		FROM story_characters sc
		JOIN characters c ON c.id = sc.character_id
		WHERE sc.story_id = $1
		ORDER BY c.created_at, c.name
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer rows.Close()

	var characters []models.StoryCharacter
	for rows.Next() {
		var c models.StoryCharacter
		if err := rows.Scan(&c.ID, &c.Name, &c.Role, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating characters: %w", err)
	}
	return characters, nil
}

func (r *StoryRepository) listChapters(ctx context.Context, storyID uuid.UUID) ([]models.Chapter, error) {
	query := `
		SELECT id, story_id, COALESCE(title, ''), COALESCE(content, ''), chapter_number, created_at, updated_at
		FROM chapters
		WHERE story_id = $1
		ORDER BY chapter_number
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}
	defer rows.Close()

	var chapters []models.Chapter
	for rows.Next() {
		var ch models.Chapter
		err := rows.Scan(
			&ch.ID,
			&ch.StoryID,
			&ch.Title,
			&ch.Content,
			&ch.ChapterNumber,
			&ch.CreatedAt,
			&ch.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}
	return chapters, nil
}
