package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/store"
	"github.com/liad142/podcatch/pkg/models"
)

// Snapshot is the point-in-time view of an episode's processing state. It is
// built purely from persisted records and never waits on in-flight work.
type Snapshot struct {
	Transcript TranscriptSnapshot         `json:"transcript"`
	Summaries  map[string]SummarySnapshot `json:"summaries"`
}

type TranscriptSnapshot struct {
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
}

type SummarySnapshot struct {
	Status       string                 `json:"status"`
	State        string                 `json:"state"`
	Content      *models.SummaryContent `json:"content,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Status returns the latest persisted snapshot for an episode. The State
// field per level comes from models.DeriveDisplayState, the one projection of
// the transcript/summary pair into a user-visible state.
func (s *Service) Status(ctx context.Context, episodeID uuid.UUID) (*Snapshot, error) {
	if _, err := s.store.GetEpisode(ctx, episodeID); err != nil {
		return nil, err
	}

	snap := &Snapshot{Summaries: map[string]SummarySnapshot{}}

	t, err := s.store.GetTranscript(ctx, episodeID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap.Transcript.Status = ""
	case err != nil:
		return nil, err
	default:
		snap.Transcript = TranscriptSnapshot{Status: t.Status, Language: t.Language}
	}

	sums, err := s.store.ListSummaries(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	for _, sum := range sums {
		ss := SummarySnapshot{
			Status: sum.Status,
			State:  models.DeriveDisplayState(snap.Transcript.Status, sum.Status),
		}
		if sum.Status == models.SummaryStatusReady {
			ss.Content = sum.Content
		}
		if sum.ErrorMessage != nil {
			ss.ErrorMessage = *sum.ErrorMessage
		}
		snap.Summaries[sum.Level] = ss
	}

	return snap, nil
}
