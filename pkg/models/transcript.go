package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TranscriptStatusQueued       = "queued"
	TranscriptStatusTranscribing = "transcribing"
	TranscriptStatusReady        = "ready"
	TranscriptStatusFailed       = "failed"
)

// Transcript is the persisted result of transcribing one episode. There is
// at most one transcript per episode; language self-healing deletes and
// recreates the row rather than mutating it in place.
type Transcript struct {
	ID           uuid.UUID   `db:"id"               json:"id"`
	EpisodeID    uuid.UUID   `db:"episode_id"       json:"episode_id"`
	Status       string      `db:"status"           json:"status"`
	FullText     string      `db:"full_text"        json:"full_text"`
	Language     string      `db:"language"         json:"language"`
	Provider     string      `db:"provider"         json:"provider"`
	Duration     float64     `db:"duration_seconds" json:"duration_seconds"`
	SpeakerCount int         `db:"speaker_count"    json:"speaker_count"`
	Utterances   []Utterance `db:"utterances"       json:"utterances,omitempty"`
	ErrorMessage *string     `db:"error_message"    json:"error_message,omitempty"`
	CreatedAt    time.Time   `db:"created_at"       json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"       json:"updated_at"`
}

// Utterance is one speaker-attributed span of the transcript. Offsets are
// seconds from the start of the audio.
type Utterance struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}
