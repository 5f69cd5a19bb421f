package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/store"
	"github.com/liad142/podcatch/internal/summarize"
	summock "github.com/liad142/podcatch/internal/summarize/mock"
	"github.com/liad142/podcatch/internal/transcribe"
	trmock "github.com/liad142/podcatch/internal/transcribe/mock"
	"github.com/liad142/podcatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory store ---

type memStore struct {
	mu                 sync.Mutex
	episodes           map[uuid.UUID]*models.Episode
	transcripts        map[uuid.UUID]*models.Transcript // by transcript ID
	summaries          map[uuid.UUID]*models.Summary    // by summary ID
	deletedTranscripts int
	languageUpdates    []string
}

func newMemStore() *memStore {
	return &memStore{
		episodes:    make(map[uuid.UUID]*models.Episode),
		transcripts: make(map[uuid.UUID]*models.Transcript),
		summaries:   make(map[uuid.UUID]*models.Summary),
	}
}

func (m *memStore) Ping(_ context.Context) error { return nil }
func (m *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memStore) CreateEpisode(_ context.Context, ep *models.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ep
	m.episodes[ep.ID] = &cp
	return nil
}

func (m *memStore) GetEpisode(_ context.Context, id uuid.UUID) (*models.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ep
	return &cp, nil
}

func (m *memStore) UpdateEpisodeLanguage(_ context.Context, id uuid.UUID, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	ep.Language = language
	m.languageUpdates = append(m.languageUpdates, language)
	return nil
}

func (m *memStore) CreateTranscript(_ context.Context, t *models.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transcripts {
		if existing.EpisodeID == t.EpisodeID {
			return store.ErrDuplicateKey
		}
	}
	cp := *t
	m.transcripts[t.ID] = &cp
	return nil
}

func (m *memStore) GetTranscript(_ context.Context, episodeID uuid.UUID) (*models.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.transcripts {
		if t.EpisodeID == episodeID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateTranscriptStatus(_ context.Context, id uuid.UUID, status string, opts ...store.TranscriptUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transcripts[id]
	if !ok {
		return store.ErrNotFound
	}
	u := store.ApplyTranscriptOptions(opts...)
	t.Status = status
	if u.Result != nil {
		t.FullText = u.Result.FullText
		t.Language = u.Result.Language
		t.Duration = u.Result.Duration
		t.SpeakerCount = u.Result.SpeakerCount
		t.Utterances = u.Result.Utterances
	}
	if u.ErrorMessage != nil {
		t.ErrorMessage = u.ErrorMessage
	}
	return nil
}

func (m *memStore) DeleteTranscript(_ context.Context, episodeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.transcripts {
		if t.EpisodeID == episodeID {
			delete(m.transcripts, id)
			m.deletedTranscripts++
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CreateSummary(_ context.Context, s *models.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.summaries {
		if existing.EpisodeID == s.EpisodeID && existing.Level == s.Level {
			return store.ErrDuplicateKey
		}
	}
	cp := *s
	m.summaries[s.ID] = &cp
	return nil
}

func (m *memStore) GetSummary(_ context.Context, episodeID uuid.UUID, level string) (*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.summaries {
		if s.EpisodeID == episodeID && s.Level == level {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListSummaries(_ context.Context, episodeID uuid.UUID) ([]*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Summary
	for _, s := range m.summaries {
		if s.EpisodeID == episodeID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListQueuedSummaries(_ context.Context, episodeID uuid.UUID) ([]*models.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Summary
	for _, s := range m.summaries {
		if s.EpisodeID == episodeID && s.Status == models.SummaryStatusQueued {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSummaryStatus(_ context.Context, id uuid.UUID, status string, opts ...store.SummaryUpdateOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok {
		return store.ErrNotFound
	}
	u := store.ApplySummaryOptions(opts...)
	s.Status = status
	if u.Content != nil {
		s.Content = u.Content
	}
	if u.Language != nil {
		s.Language = *u.Language
	}
	if u.Model != nil {
		s.Model = *u.Model
	}
	if u.ErrorMessage != nil {
		s.ErrorMessage = u.ErrorMessage
	} else if status == models.SummaryStatusQueued {
		s.ErrorMessage = nil
	}
	return nil
}

// --- noop cache ---

type noopCache struct{}

func (noopCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (noopCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (noopCache) Delete(_ context.Context, _ string) error                         { return nil }
func (noopCache) Ping(_ context.Context) error                                     { return nil }
func (noopCache) SetEpisodeStatus(_ context.Context, _ uuid.UUID, _ []byte, _ time.Duration) error {
	return nil
}
func (noopCache) GetEpisodeStatus(_ context.Context, _ uuid.UUID) ([]byte, bool, error) {
	return nil, false, nil
}
func (noopCache) DeleteEpisodeStatus(_ context.Context, _ uuid.UUID) error { return nil }
func (noopCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- helpers ---

func seedEpisode(t *testing.T, m *memStore, language string) *models.Episode {
	t.Helper()
	ep := &models.Episode{
		ID:       uuid.New(),
		Title:    "Test Episode",
		AudioURL: "https://cdn.example.com/ep.mp3",
		Language: language,
	}
	require.NoError(t, m.CreateEpisode(context.Background(), ep))
	return ep
}

func newTestService(m *memStore, tr transcribe.Provider, su summarize.Summarizer) *Service {
	return NewService(m, noopCache{}, tr, su, time.Second)
}

func waitSummaryStatus(t *testing.T, m *memStore, episodeID uuid.UUID, level, want string) *models.Summary {
	t.Helper()
	var got *models.Summary
	require.Eventually(t, func() bool {
		s, err := m.GetSummary(context.Background(), episodeID, level)
		if err != nil {
			return false
		}
		got = s
		return s.Status == want
	}, 2*time.Second, 10*time.Millisecond, "summary never reached %s", want)
	return got
}

// --- tests ---

func TestSubmit_InvalidLevel(t *testing.T) {
	svc := newTestService(newMemStore(), &trmock.Provider{}, &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), uuid.New(), "medium")
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestSubmit_UnknownEpisode(t *testing.T) {
	svc := newTestService(newMemStore(), &trmock.Provider{}, &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), uuid.New(), models.SummaryLevelQuick)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit_NoAudioURL(t *testing.T) {
	m := newMemStore()
	ep := &models.Episode{ID: uuid.New(), Title: "No audio", AudioURL: "  "}
	require.NoError(t, m.CreateEpisode(context.Background(), ep))
	svc := newTestService(m, &trmock.Provider{}, &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	assert.ErrorIs(t, err, ErrNoAudioURL)
}

func TestSubmit_HappyPath(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")
	svc := newTestService(m, &trmock.Provider{}, &summock.Summarizer{})

	snap, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	// The immediate snapshot shows in-flight work, never blocks on it.
	assert.Contains(t,
		[]string{models.TranscriptStatusTranscribing, models.TranscriptStatusReady},
		snap.Transcript.Status)

	sum := waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)
	require.NotNil(t, sum.Content)
	assert.NotEmpty(t, sum.Content.TLDR)
	assert.Equal(t, "en", sum.Language)
	assert.Equal(t, "mock-v1", sum.Model)

	tr, err := m.GetTranscript(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusReady, tr.Status)
	assert.Equal(t, 2, tr.SpeakerCount)
}

func TestSubmit_DedupWhileInFlight(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")

	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	tr := &trmock.Provider{
		TranscribeFunc: func(_ context.Context, _, language string) (*transcribe.Result, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			<-release
			return trmock.DefaultResult(language), nil
		},
	}
	svc := newTestService(m, tr, &summock.Summarizer{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	// Resubmitting the same pair while in flight is a no-op.
	snap, err := svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusTranscribing, snap.Transcript.Status)

	close(release)
	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "a single transcription serves both submissions")
}

func TestSubmit_SecondLevelReusesTranscript(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")

	var calls int
	var mu sync.Mutex
	tr := &trmock.Provider{
		TranscribeFunc: func(_ context.Context, _, language string) (*transcribe.Result, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return trmock.DefaultResult(language), nil
		},
	}
	svc := newTestService(m, tr, &summock.Summarizer{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)
	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)

	_, err = svc.Submit(ctx, ep.ID, models.SummaryLevelDeep)
	require.NoError(t, err)
	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelDeep, models.SummaryStatusReady)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "the ready transcript is reused for the second level")
}

func TestSubmit_TranscriptionFailure(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")
	svc := newTestService(m, trmock.NewFailing(errors.New("upstream exploded")), &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	sum := waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusFailed)
	require.NotNil(t, sum.ErrorMessage)
	assert.Contains(t, *sum.ErrorMessage, "transcription failed")

	tr, err := m.GetTranscript(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusFailed, tr.Status)
	require.NotNil(t, tr.ErrorMessage)
	assert.Contains(t, *tr.ErrorMessage, "upstream exploded")
}

func TestSubmit_RequeueAfterFailure(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")

	var mu sync.Mutex
	firstCall := true
	tr := &trmock.Provider{
		TranscribeFunc: func(_ context.Context, _, language string) (*transcribe.Result, error) {
			mu.Lock()
			defer mu.Unlock()
			if firstCall {
				firstCall = false
				return nil, errors.New("flaky upstream")
			}
			return trmock.DefaultResult(language), nil
		},
	}
	svc := newTestService(m, tr, &summock.Summarizer{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)
	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusFailed)

	// A fresh submission restarts the failed transcript and re-queues the summary.
	_, err = svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	sum := waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)
	assert.Nil(t, sum.ErrorMessage)
}

func TestSubmit_LanguageSelfHealing(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")

	var mu sync.Mutex
	var requestedLanguages []string
	tr := &trmock.Provider{
		TranscribeFunc: func(_ context.Context, _, language string) (*transcribe.Result, error) {
			mu.Lock()
			requestedLanguages = append(requestedLanguages, language)
			mu.Unlock()
			res := trmock.DefaultResult(language)
			res.DetectedLanguage = "he" // provider hears Hebrew regardless of the hint
			return res, nil
		},
	}
	svc := newTestService(m, tr, &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	sum := waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)
	assert.Equal(t, "he", sum.Language)

	mu.Lock()
	assert.Equal(t, []string{"en", "he"}, requestedLanguages, "correction re-transcribes exactly once")
	mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.deletedTranscripts, "stale transcript replaced, not mutated")
	assert.Equal(t, []string{"he"}, m.languageUpdates)
	assert.Equal(t, "he", m.episodes[ep.ID].Language)
}

func TestSubmit_SelfHealingFiresAtMostOnce(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")

	var mu sync.Mutex
	var calls int
	tr := &trmock.Provider{
		TranscribeFunc: func(_ context.Context, _, language string) (*transcribe.Result, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			res := trmock.DefaultResult(language)
			// Detection oscillates: he on the first pass, fr on the corrected one.
			if language == "en" {
				res.DetectedLanguage = "he"
			} else {
				res.DetectedLanguage = "fr"
			}
			return res, nil
		},
	}
	svc := newTestService(m, tr, &summock.Summarizer{})

	_, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)

	mu.Lock()
	assert.Equal(t, 2, calls, "the second mismatch is accepted, not corrected again")
	mu.Unlock()

	tr2, err := m.GetTranscript(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, "he", tr2.Language, "the corrected language is kept despite the second mismatch")
}

func TestSubmit_SummarizerFailure(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")
	svc := newTestService(m, &trmock.Provider{}, summock.NewFailing(errors.New("model unavailable")))

	_, err := svc.Submit(context.Background(), ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)

	sum := waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusFailed)
	require.NotNil(t, sum.ErrorMessage)
	assert.Contains(t, *sum.ErrorMessage, "model unavailable")

	// The transcript itself is fine and will be reused.
	tr, err := m.GetTranscript(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptStatusReady, tr.Status)
}

func TestStatus_UnknownEpisode(t *testing.T) {
	svc := newTestService(newMemStore(), &trmock.Provider{}, &summock.Summarizer{})

	_, err := svc.Status(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatus_DerivesDisplayState(t *testing.T) {
	m := newMemStore()
	ep := seedEpisode(t, m, "en")
	svc := newTestService(m, &trmock.Provider{}, &summock.Summarizer{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, ep.ID, models.SummaryLevelQuick)
	require.NoError(t, err)
	waitSummaryStatus(t, m, ep.ID, models.SummaryLevelQuick, models.SummaryStatusReady)

	snap, err := svc.Status(ctx, ep.ID)
	require.NoError(t, err)

	q := snap.Summaries[models.SummaryLevelQuick]
	assert.Equal(t, models.DisplayReady, q.State)
	require.NotNil(t, q.Content)
	assert.NotEmpty(t, q.Content.TLDR)
}
