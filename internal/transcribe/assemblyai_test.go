package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssemblyAI serves the submit-then-poll flow: the transcript reaches
// the terminal payload after pendingPolls polls.
func fakeAssemblyAI(t *testing.T, pendingPolls int, terminal map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, true, req["speaker_labels"])
			json.NewEncoder(w).Encode(map[string]any{"id": "tr_123", "status": "queued"})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/transcript/"):
			if int(polls.Add(1)) <= pendingPolls {
				json.NewEncoder(w).Encode(map[string]any{"id": "tr_123", "status": "processing"})
				return
			}
			json.NewEncoder(w).Encode(terminal)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestClient(baseURL string) *AssemblyAIClient {
	return NewAssemblyAIClient(AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  2 * time.Second,
	})
}

func TestAssemblyAI_CompletedTranscript(t *testing.T) {
	srv, polls := fakeAssemblyAI(t, 2, map[string]any{
		"id":             "tr_123",
		"status":         "completed",
		"text":           "Hello there. General Kenobi.",
		"language_code":  "en_us",
		"audio_duration": 12.5,
		"utterances": []map[string]any{
			{"speaker": "A", "start": 0, "end": 2500, "text": "Hello there."},
			{"speaker": "B", "start": 2600, "end": 5000, "text": "General Kenobi."},
		},
	})

	res, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "en")
	require.NoError(t, err)

	assert.Equal(t, "Hello there. General Kenobi.", res.FullText)
	assert.Equal(t, "en", res.DetectedLanguage, "en_us is normalized to ISO-639-1")
	assert.Equal(t, 12.5, res.Duration)
	assert.Equal(t, 2, res.SpeakerCount)
	require.Len(t, res.Utterances, 2)
	assert.Equal(t, 2.5, res.Utterances[0].End, "offsets converted from milliseconds to seconds")
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestAssemblyAI_ProviderError(t *testing.T) {
	srv, _ := fakeAssemblyAI(t, 0, map[string]any{
		"id":     "tr_123",
		"status": "error",
		"error":  "download error: unable to fetch audio",
	})

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "en")
	require.Error(t, err)
	assert.True(t, IsPermanent(err), "provider-side job failure must not be retried")
	assert.Contains(t, err.Error(), "unable to fetch audio")
}

func TestAssemblyAI_SubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "en")
	require.Error(t, err)
	assert.True(t, IsPermanent(err), "4xx on submit is permanent")
}

func TestAssemblyAI_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "en")
	require.Error(t, err)
	assert.False(t, IsPermanent(err), "5xx is left retryable")
}

func TestAssemblyAI_LanguageDetectionWhenNoHint(t *testing.T) {
	var gotDetection atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if v, ok := req["language_detection"].(bool); ok && v {
				gotDetection.Store(true)
			}
			json.NewEncoder(w).Encode(map[string]any{"id": "tr_9", "status": "queued"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "tr_9", "status": "completed", "text": "ok", "language_code": "he",
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "")
	require.NoError(t, err)
	assert.True(t, gotDetection.Load(), "no language hint must enable detection")
	assert.Equal(t, "he", res.DetectedLanguage)
}

func TestAssemblyAI_PollPayloadTooLarge(t *testing.T) {
	big := strings.Repeat("x", 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"id": "tr_1", "status": "queued"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "tr_1", "status": "completed", "text": big})
	}))
	defer srv.Close()

	c := NewAssemblyAIClient(AssemblyAIConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		PollInterval:    10 * time.Millisecond,
		PollTimeout:     time.Second,
		MaxPayloadBytes: 256,
	})

	_, err := c.Transcribe(context.Background(), "https://cdn.example.com/ep.mp3", "en")
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en", normalizeLanguage("en_us"))
	assert.Equal(t, "pt", normalizeLanguage("pt-BR"))
	assert.Equal(t, "he", normalizeLanguage("he"))
	assert.Equal(t, "", normalizeLanguage(""))
}
