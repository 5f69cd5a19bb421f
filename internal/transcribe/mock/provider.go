// Package mock provides a transcribe.Provider for testing.
package mock

import (
	"context"

	"github.com/liad142/podcatch/internal/transcribe"
	"github.com/liad142/podcatch/pkg/models"
)

// Provider satisfies transcribe.Provider for testing.
type Provider struct {
	Name_          string
	TranscribeFunc func(ctx context.Context, audioURL, language string) (*transcribe.Result, error)
}

func (p *Provider) Name() string {
	if p.Name_ == "" {
		return "mock"
	}
	return p.Name_
}

func (p *Provider) Transcribe(ctx context.Context, audioURL, language string) (*transcribe.Result, error) {
	if p.TranscribeFunc != nil {
		return p.TranscribeFunc(ctx, audioURL, language)
	}
	return DefaultResult(language), nil
}

// DefaultResult returns a small two-speaker transcript echoing the requested
// language as the detected one.
func DefaultResult(language string) *transcribe.Result {
	if language == "" {
		language = "en"
	}
	return &transcribe.Result{
		Utterances: []models.Utterance{
			{Speaker: "A", Start: 0, End: 4.2, Text: "Welcome back to the show."},
			{Speaker: "B", Start: 4.2, End: 9.8, Text: "Thanks for having me."},
		},
		FullText:         "Welcome back to the show. Thanks for having me.",
		Duration:         9.8,
		SpeakerCount:     2,
		DetectedLanguage: language,
	}
}

// NewFailing returns a Provider that always returns err.
func NewFailing(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		TranscribeFunc: func(_ context.Context, _, _ string) (*transcribe.Result, error) {
			return nil, err
		},
	}
}

var _ transcribe.Provider = (*Provider)(nil)
