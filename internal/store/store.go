package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error

	CreateEpisode(ctx context.Context, ep *models.Episode) error
	GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error)
	UpdateEpisodeLanguage(ctx context.Context, id uuid.UUID, language string) error

	CreateTranscript(ctx context.Context, t *models.Transcript) error
	GetTranscript(ctx context.Context, episodeID uuid.UUID) (*models.Transcript, error)
	UpdateTranscriptStatus(ctx context.Context, id uuid.UUID, status string, opts ...TranscriptUpdateOption) error
	DeleteTranscript(ctx context.Context, episodeID uuid.UUID) error

	CreateSummary(ctx context.Context, s *models.Summary) error
	GetSummary(ctx context.Context, episodeID uuid.UUID, level string) (*models.Summary, error)
	ListSummaries(ctx context.Context, episodeID uuid.UUID) ([]*models.Summary, error)
	ListQueuedSummaries(ctx context.Context, episodeID uuid.UUID) ([]*models.Summary, error)
	UpdateSummaryStatus(ctx context.Context, id uuid.UUID, status string, opts ...SummaryUpdateOption) error
}

// TranscriptUpdate collects the optional fields of an UpdateTranscriptStatus
// call. Exported so fakes can interpret the options the same way the real
// store does.
type TranscriptUpdate struct {
	ErrorMessage *string
	Result       *TranscriptResult
}

// ApplyTranscriptOptions folds opts into a TranscriptUpdate.
func ApplyTranscriptOptions(opts ...TranscriptUpdateOption) TranscriptUpdate {
	var u TranscriptUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// TranscriptResult carries the fields persisted when a transcript lands.
type TranscriptResult struct {
	FullText     string
	Language     string
	Duration     float64
	SpeakerCount int
	Utterances   []models.Utterance
}

type TranscriptUpdateOption func(*TranscriptUpdate)

func WithTranscriptError(msg string) TranscriptUpdateOption {
	return func(p *TranscriptUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithTranscriptResult(res TranscriptResult) TranscriptUpdateOption {
	return func(p *TranscriptUpdate) {
		p.Result = &res
	}
}

// SummaryUpdate collects the optional fields of an UpdateSummaryStatus call.
type SummaryUpdate struct {
	ErrorMessage *string
	Content      *models.SummaryContent
	Language     *string
	Model        *string
}

// ApplySummaryOptions folds opts into a SummaryUpdate.
func ApplySummaryOptions(opts ...SummaryUpdateOption) SummaryUpdate {
	var u SummaryUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

type SummaryUpdateOption func(*SummaryUpdate)

func WithSummaryError(msg string) SummaryUpdateOption {
	return func(p *SummaryUpdate) {
		p.ErrorMessage = &msg
	}
}

func WithSummaryContent(content *models.SummaryContent) SummaryUpdateOption {
	return func(p *SummaryUpdate) {
		p.Content = content
	}
}

func WithSummaryLanguage(language string) SummaryUpdateOption {
	return func(p *SummaryUpdate) {
		p.Language = &language
	}
}

func WithSummaryModel(model string) SummaryUpdateOption {
	return func(p *SummaryUpdate) {
		p.Model = &model
	}
}
