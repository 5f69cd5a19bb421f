// Package models contains shared data models used across the PodCatch codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Episode is the unit of content the processing pipeline operates on.
// Catalog management (feeds, shows, artwork) lives elsewhere; the pipeline
// only needs a resolvable audio URL and the assumed language.
type Episode struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	AudioURL    string     `db:"audio_url"    json:"audio_url"`
	Language    string     `db:"language"     json:"language"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}
