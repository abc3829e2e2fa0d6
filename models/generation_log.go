package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GenerationOperation names the writing tool that triggered a generation
type GenerationOperation string

const (
	GenerationContinue      GenerationOperation = "continue"
	GenerationContinueAdult GenerationOperation = "continue_adult"
	GenerationSuggestions   GenerationOperation = "suggestions"
	GenerationImprove       GenerationOperation = "improve"
	GenerationTitle         GenerationOperation = "title"
	GenerationDescription   GenerationOperation = "description"
	GenerationIllustrate    GenerationOperation = "illustrate"
)

// GenerationLog is the audit trail entry for one AI dispatch
type GenerationLog struct {
	ID           uuid.UUID           `json:"id" db:"id"`
	StoryID      uuid.UUID           `json:"story_id" db:"story_id"`
	UserID       uuid.UUID           `json:"user_id" db:"user_id"`
	Operation    GenerationOperation `json:"operation" db:"operation"`
	Class        string              `json:"class" db:"class"`
	Provider     *string             `json:"provider,omitempty" db:"provider"`
	Attempted    pq.StringArray      `json:"attempted" db:"attempted"`
	Success      bool                `json:"success" db:"success"`
	LatencyMs    int                 `json:"latency_ms" db:"latency_ms"`
	ErrorMessage *string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time           `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the GenerationLog model
func (GenerationLog) TableName() string {
	return "ai_generation_logs"
}

// NewGenerationLog starts an entry; the outcome is filled in afterwards
func NewGenerationLog(storyID, userID uuid.UUID, op GenerationOperation, class string) *GenerationLog {
	return &GenerationLog{
		ID:        uuid.New(),
		StoryID:   storyID,
		UserID:    userID,
		Operation: op,
		Class:     class,
		Attempted: pq.StringArray{},
		CreatedAt: time.Now(),
	}
}

// WithSuccess records the provider that answered
func (g *GenerationLog) WithSuccess(provider string, attempted []string) *GenerationLog {
	g.Success = true
	g.Provider = &provider
	g.Attempted = append(pq.StringArray{}, attempted...)
	return g
}

// WithFailure records an exhausted or failed dispatch
func (g *GenerationLog) WithFailure(attempted []string, message string) *GenerationLog {
	g.Success = false
	g.Attempted = append(pq.StringArray{}, attempted...)
	g.ErrorMessage = &message
	return g
}

// WithLatency records the elapsed time since start
func (g *GenerationLog) WithLatency(start time.Time) *GenerationLog {
	g.LatencyMs = int(time.Since(start).Milliseconds())
	return g
}
