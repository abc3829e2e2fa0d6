package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/repositories"
	"go.uber.org/zap"
)

// GenerationLogRepository implements repositories.GenerationLogRepository
type GenerationLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewGenerationLogRepository creates a new generation log repository
func NewGenerationLogRepository(db *DB, logger *zap.Logger) repositories.GenerationLogRepository {
	return &GenerationLogRepository{db: db, logger: logger}
}

// Insert appends one audit entry
func (r *GenerationLogRepository) Insert(ctx context.Context, entry *models.GenerationLog) error {
	query := `
		INSERT INTO ai_generation_logs (
			id, story_id, user_id, operation, class, provider, attempted,
			success, latency_ms, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.StoryID,
		entry.UserID,
		entry.Operation,
		entry.Class,
		entry.Provider,
		entry.Attempted,
		entry.Success,
		entry.LatencyMs,
		entry.ErrorMessage,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation log: %w", err)
	}

	r.logger.Debug("generation log inserted",
		zap.String("id", entry.ID.String()),
		zap.String("operation", string(entry.Operation)))
	return nil
}

// DeleteOlderThan prunes entries created before now-retention
func (r *GenerationLogRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)

	result, err := getExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM ai_generation_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generation logs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
