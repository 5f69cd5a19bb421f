package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/liad142/podcatch/internal/config"
	"github.com/liad142/podcatch/pkg/models"
	openai "github.com/sashabaranov/go-openai"
)

// maxTranscriptBytes bounds how much transcript text is sent per request.
// Long episodes are truncated rather than split; the tail of a transcript
// rarely changes the summary.
const maxTranscriptBytes = 48_000

const quickPrompt = `You summarize podcast episodes. Respond with a JSON object:
{"tl_dr": "two or three sentences", "key_points": ["up to five short bullets"]}.
Write in the language of the transcript.`

const deepPrompt = `You summarize podcast episodes in depth. Respond with a JSON object:
{"tl_dr": "a short paragraph", "key_points": ["up to eight bullets"],
"sections": [{"title": "...", "body": "..."}]} covering the episode's main
segments in order. Write in the language of the transcript.`

// OpenAISummarizer implements Summarizer using OpenAI chat completions.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

func NewOpenAISummarizer(cfg config.OpenAIConfig) *OpenAISummarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAISummarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (s *OpenAISummarizer) Name() string  { return "openai" }
func (s *OpenAISummarizer) Model() string { return s.model }

func (s *OpenAISummarizer) Summarize(ctx context.Context, req Request) (*models.SummaryContent, error) {
	prompt := quickPrompt
	if req.Level == models.SummaryLevelDeep {
		prompt = deepPrompt
	}

	user := fmt.Sprintf("Episode: %s\nLanguage: %s\n\nTranscript:\n%s",
		req.Title, req.Language, truncateString(req.FullText, maxTranscriptBytes))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.3,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	var content models.SummaryContent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if content.TLDR == "" {
		return nil, fmt.Errorf("%w: missing tl_dr", ErrInvalidResponse)
	}

	return &content, nil
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

var _ Summarizer = (*OpenAISummarizer)(nil)
