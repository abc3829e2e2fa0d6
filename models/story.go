package models

import (
	"time"

	"github.com/google/uuid"
)

// Rating is a story's age rating as stored by the platform
type Rating string

const (
	Rating0Plus  Rating = "0+"
	Rating6Plus  Rating = "6+"
	Rating12Plus Rating = "12+"
	Rating16Plus Rating = "16+"
	Rating18Plus Rating = "18+"

	// legacy MPAA values still present on older stories
	RatingR    Rating = "R"
	RatingNC17 Rating = "NC-17"
)

// IsAdult reports whether the rating unlocks adult generation
func (r Rating) IsAdult() bool {
	switch r {
	case RatingR, RatingNC17, Rating18Plus:
		return true
	}
	return false
}

// Story is the read-only view of a platform story the gateway needs
type Story struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	AuthorID    uuid.UUID  `json:"author_id" db:"author_id"`
	UniverseID  *uuid.UUID `json:"universe_id,omitempty" db:"universe_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Rating      Rating     `json:"rating" db:"rating"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Story model
func (Story) TableName() string {
	return "stories"
}

// IsAuthoredBy returns true if userID owns the story
func (s *Story) IsAuthoredBy(userID uuid.UUID) bool {
	return s.AuthorID == userID
}

// Universe is the shared setting a story may belong to
type Universe struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
}

// TableName returns the table name for the Universe model
func (Universe) TableName() string {
	return "universes"
}

// StoryCharacter is a character as cast in one story
type StoryCharacter struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Role        string    `json:"role,omitempty" db:"role"`
	Description string    `json:"description,omitempty" db:"description"`
}

// StoryContext bundles everything prompt assembly reads about a story.
// Chapters are ordered by chapter number.
type StoryContext struct {
	Story      Story
	Universe   *Universe
	Characters []StoryCharacter
	Chapters   []Chapter
}

// Chapter returns the chapter with the given id
func (c *StoryContext) Chapter(id uuid.UUID) (*Chapter, bool) {
	for i := range c.Chapters {
		if c.Chapters[i].ID == id {
			return &c.Chapters[i], true
		}
	}
	return nil, false
}
