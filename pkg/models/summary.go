package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SummaryLevelQuick = "quick"
	SummaryLevelDeep  = "deep"
)

const (
	SummaryStatusQueued      = "queued"
	SummaryStatusSummarizing = "summarizing"
	SummaryStatusReady       = "ready"
	SummaryStatusFailed      = "failed"
)

// ValidSummaryLevel reports whether level is a recognized summary level.
func ValidSummaryLevel(level string) bool {
	return level == SummaryLevelQuick || level == SummaryLevelDeep
}

// Summary tracks one summarization job per (episode, level). Content is
// present only when status is ready; error_message only when failed.
type Summary struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	EpisodeID    uuid.UUID       `db:"episode_id"    json:"episode_id"`
	Level        string          `db:"level"         json:"level"`
	Status       string          `db:"status"        json:"status"`
	Content      *SummaryContent `db:"content"       json:"content,omitempty"`
	Language     string          `db:"language"      json:"language"`
	Model        string          `db:"model"         json:"model"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the summary has reached a terminal status.
func (s *Summary) Terminal() bool {
	return s.Status == SummaryStatusReady || s.Status == SummaryStatusFailed
}

// SummaryContent is the structured output of the summarization provider.
// Quick summaries fill TLDR and KeyPoints; deep summaries also carry Sections.
type SummaryContent struct {
	TLDR      string           `json:"tl_dr"`
	KeyPoints []string         `json:"key_points,omitempty"`
	Sections  []SummarySection `json:"sections,omitempty"`
}

type SummarySection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
