package models

import (
	"time"

	"github.com/google/uuid"
)

// Illustration is a generated image attached to a story or chapter
type Illustration struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	StoryID   uuid.UUID  `json:"story_id" db:"story_id"`
	ChapterID *uuid.UUID `json:"chapter_id,omitempty" db:"chapter_id"`
	ImageURL  string     `json:"image_url" db:"image_url"`
	Prompt    string     `json:"prompt" db:"prompt"`
	Position  int        `json:"position" db:"position"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Illustration model
func (Illustration) TableName() string {
	return "illustrations"
}

// NewIllustration creates a new Illustration instance
func NewIllustration(storyID uuid.UUID, chapterID *uuid.UUID, imageURL, prompt string, position int) *Illustration {
	now := time.Now()
	return &Illustration{
		ID:        uuid.New(),
		StoryID:   storyID,
		ChapterID: chapterID,
		ImageURL:  imageURL,
		Prompt:    prompt,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
