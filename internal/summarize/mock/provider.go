// Package mock provides a summarize.Summarizer for testing.
package mock

import (
	"context"

	"github.com/liad142/podcatch/internal/summarize"
	"github.com/liad142/podcatch/pkg/models"
)

// Summarizer satisfies summarize.Summarizer for testing.
type Summarizer struct {
	Name_         string
	Model_        string
	SummarizeFunc func(ctx context.Context, req summarize.Request) (*models.SummaryContent, error)
}

func (s *Summarizer) Name() string {
	if s.Name_ == "" {
		return "mock"
	}
	return s.Name_
}

func (s *Summarizer) Model() string {
	if s.Model_ == "" {
		return "mock-v1"
	}
	return s.Model_
}

func (s *Summarizer) Summarize(ctx context.Context, req summarize.Request) (*models.SummaryContent, error) {
	if s.SummarizeFunc != nil {
		return s.SummarizeFunc(ctx, req)
	}
	content := &models.SummaryContent{
		TLDR:      "Mock summary of " + req.Title,
		KeyPoints: []string{"first point", "second point"},
	}
	if req.Level == models.SummaryLevelDeep {
		content.Sections = []models.SummarySection{{Title: "Opening", Body: "Mock section body"}}
	}
	return content, nil
}

// NewFailing returns a Summarizer that always returns err.
func NewFailing(err error) *Summarizer {
	return &Summarizer{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ summarize.Request) (*models.SummaryContent, error) {
			return nil, err
		},
	}
}

var _ summarize.Summarizer = (*Summarizer)(nil)
