// Package summarize turns a finished transcript into structured episode
// summaries at the requested level.
package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/liad142/podcatch/internal/config"
	"github.com/liad142/podcatch/pkg/models"
)

var (
	ErrProviderUnavailable = errors.New("summary provider unavailable")
	ErrInvalidResponse     = errors.New("summary provider returned invalid response")
)

// Request is the input to one summarization call.
type Request struct {
	Title    string
	FullText string
	Language string
	Level    string // models.SummaryLevelQuick or models.SummaryLevelDeep
}

// Summarizer is the interface to the generative provider. Never call a
// specific provider directly; always inject this interface.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (*models.SummaryContent, error)
	Name() string
	Model() string
}

// NewSummarizer constructs the configured provider. Called once at startup.
func NewSummarizer(cfg config.SummaryConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAISummarizer(cfg.OpenAI), nil
	case "mock":
		// Local development without an OpenAI account.
		return builtinMock{}, nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q: must be one of openai, mock", cfg.Provider)
	}
}

type builtinMock struct{}

func (builtinMock) Name() string  { return "mock" }
func (builtinMock) Model() string { return "mock" }

func (builtinMock) Summarize(_ context.Context, req Request) (*models.SummaryContent, error) {
	content := &models.SummaryContent{
		TLDR:      "A short placeholder summary of " + req.Title + ".",
		KeyPoints: []string{"first point", "second point"},
	}
	if req.Level == models.SummaryLevelDeep {
		content.Sections = []models.SummarySection{
			{Title: "Overview", Body: "A placeholder section."},
		}
	}
	return content, nil
}
