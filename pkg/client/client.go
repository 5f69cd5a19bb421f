// Package client provides an HTTP client for the PodCatch API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/liad142/podcatch/pkg/models"
)

const defaultTimeout = 15 * time.Second

// Client talks to a PodCatch API server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the given base URL and API key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// EpisodeStatus is the processing snapshot for one episode.
type EpisodeStatus struct {
	Transcript TranscriptStatus         `json:"transcript"`
	Summaries  map[string]SummaryStatus `json:"summaries"`
}

type TranscriptStatus struct {
	Status   string `json:"status"`
	Language string `json:"language,omitempty"`
}

type SummaryStatus struct {
	Status       string                 `json:"status"`
	State        string                 `json:"state"`
	Content      *models.SummaryContent `json:"content,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// SubmitSummary requests summarization of an episode at the given level.
// The server responds 202 with the current snapshot; processing continues
// asynchronously and callers poll GetStatus until a terminal state.
func (c *Client) SubmitSummary(ctx context.Context, episodeID, level string) (*EpisodeStatus, error) {
	body, err := json.Marshal(map[string]string{"level": level})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/episodes/%s/summaries", c.baseURL, url.PathEscape(episodeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var status EpisodeStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetStatus fetches the current processing snapshot for an episode.
func (c *Client) GetStatus(ctx context.Context, episodeID string) (*EpisodeStatus, error) {
	endpoint := fmt.Sprintf("%s/api/v1/episodes/%s/summaries", c.baseURL, url.PathEscape(episodeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var status EpisodeStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// do executes a request, unwraps the response envelope into out, and maps
// non-2xx responses to *APIError.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
