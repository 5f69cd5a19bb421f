package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liad142/podcatch/pkg/models"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 15 * time.Minute
)

// AssemblyAIConfig configures the AssemblyAI client.
type AssemblyAIConfig struct {
	APIKey          string
	BaseURL         string
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPayloadBytes int64
}

// AssemblyAIClient talks to AssemblyAI's async transcript API: submit a job,
// then poll until it reaches completed or error.
type AssemblyAIClient struct {
	cfg    AssemblyAIConfig
	client *http.Client
}

// NewAssemblyAIClient creates a new client. The zero values of PollInterval,
// PollTimeout and MaxPayloadBytes fall back to sane defaults.
func NewAssemblyAIClient(cfg AssemblyAIConfig) *AssemblyAIClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return &AssemblyAIClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *AssemblyAIClient) Name() string { return "assemblyai" }

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageCode      string `json:"language_code,omitempty"`
	LanguageDetection bool   `json:"language_detection,omitempty"`
	SpeakerLabels     bool   `json:"speaker_labels"`
}

type transcriptResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Text          string `json:"text"`
	LanguageCode  string `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Error         string `json:"error"`
	Utterances    []struct {
		Speaker string  `json:"speaker"`
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
	} `json:"utterances"`
}

// Transcribe submits the audio URL and polls until the transcript lands.
// Provider 4xx responses are permanent; everything else is left retryable
// for the adapter's retry loop.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audioURL, language string) (*Result, error) {
	id, err := c.submit(ctx, audioURL, language)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.cfg.PollTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		tr, err := c.fetch(ctx, id)
		if err != nil {
			return nil, err
		}

		switch tr.Status {
		case "completed":
			return c.toResult(tr), nil
		case "error":
			// The provider marked the job failed; retrying the same input
			// will not help.
			return nil, Permanent(fmt.Errorf("assemblyai transcript failed: %s", tr.Error))
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("assemblyai transcript %s not ready after %s", id, c.cfg.PollTimeout)
		}
	}
}

func (c *AssemblyAIClient) submit(ctx context.Context, audioURL, language string) (string, error) {
	body := transcriptRequest{
		AudioURL:      audioURL,
		SpeakerLabels: true,
	}
	if language != "" {
		body.LanguageCode = language
	} else {
		body.LanguageDetection = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v2/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting transcript: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "submit"); err != nil {
		return "", err
	}

	var tr transcriptResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding transcript response: %w", err)
	}
	if tr.ID == "" {
		return "", fmt.Errorf("assemblyai returned no transcript id")
	}
	return tr.ID, nil
}

func (c *AssemblyAIClient) fetch(ctx context.Context, id string) (*transcriptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling transcript: %w", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "poll"); err != nil {
		return nil, err
	}

	// Completed transcripts carry the full text and utterances, which for
	// long episodes is a large payload; guard it before decoding.
	buf, err := ReadLimited(resp.Body, resp.ContentLength, c.cfg.MaxPayloadBytes)
	if err != nil {
		return nil, err
	}

	var tr transcriptResponse
	if err := json.Unmarshal(buf, &tr); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}
	return &tr, nil
}

func (c *AssemblyAIClient) toResult(tr *transcriptResponse) *Result {
	res := &Result{
		FullText:         tr.Text,
		Duration:         tr.AudioDuration,
		DetectedLanguage: normalizeLanguage(tr.LanguageCode),
	}

	speakers := map[string]bool{}
	for _, u := range tr.Utterances {
		speakers[u.Speaker] = true
		res.Utterances = append(res.Utterances, models.Utterance{
			Speaker: u.Speaker,
			// AssemblyAI reports offsets in milliseconds.
			Start: u.Start / 1000,
			End:   u.End / 1000,
			Text:  u.Text,
		})
	}
	res.SpeakerCount = len(speakers)
	return res
}

func classifyStatus(status int, op string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return Permanent(fmt.Errorf("assemblyai %s rejected: status %d", op, status))
	default:
		return fmt.Errorf("assemblyai %s failed: status %d", op, status)
	}
}

// normalizeLanguage reduces provider codes like "en_us" to ISO-639-1.
func normalizeLanguage(code string) string {
	if i := strings.IndexAny(code, "_-"); i > 0 {
		return code[:i]
	}
	return code
}

var _ Provider = (*AssemblyAIClient)(nil)
