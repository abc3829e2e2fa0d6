package models

import (
	"time"

	"github.com/google/uuid"
)

// Chapter is one numbered chapter of a story
type Chapter struct {
	ID            uuid.UUID `json:"id" db:"id"`
	StoryID       uuid.UUID `json:"story_id" db:"story_id"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	ChapterNumber int       `json:"chapter_number" db:"chapter_number"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Chapter model
func (Chapter) TableName() string {
	return "chapters"
}

// HasContent returns true if the chapter carries any text
func (c *Chapter) HasContent() bool {
	return c.Content != ""
}
