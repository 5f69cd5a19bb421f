// Package pipeline drives episodes through transcription and summarization
// and is the authoritative record of job progress per episode and level.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/cache"
	"github.com/liad142/podcatch/internal/store"
	"github.com/liad142/podcatch/internal/summarize"
	"github.com/liad142/podcatch/internal/transcribe"
	"github.com/liad142/podcatch/pkg/models"
)

var (
	ErrInvalidLevel = errors.New("invalid summary level")
	ErrNoAudioURL   = errors.New("episode has no audio URL")
)

// Service orchestrates the processing pipeline. Each Submit is triggered
// per-request; background work runs in a goroutine that always terminalizes
// the records it touched.
type Service struct {
	store       store.Store
	cache       cache.Cache
	transcriber transcribe.Provider
	summarizer  summarize.Summarizer
	timeout     time.Duration
}

// NewService creates a new pipeline Service. timeout bounds each individual
// summarization call, not the whole pipeline.
func NewService(st store.Store, ca cache.Cache, tr transcribe.Provider, su summarize.Summarizer, timeout time.Duration) *Service {
	return &Service{
		store:       st,
		cache:       ca,
		transcriber: tr,
		summarizer:  su,
		timeout:     timeout,
	}
}

// Submit starts (or no-ops on) processing for (episodeID, level) and returns
// the current snapshot immediately. An active job for the same pair makes
// this idempotent: the existing status is returned and no new work starts.
func (s *Service) Submit(ctx context.Context, episodeID uuid.UUID, level string) (*Snapshot, error) {
	if !models.ValidSummaryLevel(level) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	ep, err := s.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ep.AudioURL) == "" {
		return nil, ErrNoAudioURL
	}

	sum, err := s.store.GetSummary(ctx, episodeID, level)
	switch {
	case err == nil && sum.Status == models.SummaryStatusFailed:
		// Client-driven retry: re-queue the failed job.
		if err := s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusQueued); err != nil {
			return nil, fmt.Errorf("requeue summary: %w", err)
		}
	case err == nil:
		// Active or already ready: dedup, return the snapshot as is.
		return s.Status(ctx, episodeID)
	case errors.Is(err, store.ErrNotFound):
		now := time.Now().UTC()
		sum = &models.Summary{
			ID:        uuid.New(),
			EpisodeID: episodeID,
			Level:     level,
			Status:    models.SummaryStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateSummary(ctx, sum); err != nil && !errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("create summary: %w", err)
		}
	default:
		return nil, err
	}

	if err := s.ensureTranscription(ctx, ep); err != nil {
		return nil, err
	}

	s.invalidateStatus(ctx, episodeID)
	return s.Status(ctx, episodeID)
}

// ensureTranscription makes sure a transcript exists or is on its way, and
// dispatches background work when this request is the one that started it.
func (s *Service) ensureTranscription(ctx context.Context, ep *models.Episode) error {
	t, err := s.store.GetTranscript(ctx, ep.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Written directly in transcribing: the queued state never hits the
		// database, saving a write per submission.
		t = newTranscript(ep, s.transcriber.Name())
		if err := s.store.CreateTranscript(ctx, t); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				// A concurrent submission won the race; its run owns the work.
				return nil
			}
			return fmt.Errorf("create transcript: %w", err)
		}
		go s.run(t.ID, ep.ID, ep.AudioURL, t.Language)
	case err != nil:
		return err
	case t.Status == models.TranscriptStatusReady:
		go s.summarizeQueued(ep.ID)
	case t.Status == models.TranscriptStatusFailed:
		if err := s.store.UpdateTranscriptStatus(ctx, t.ID, models.TranscriptStatusTranscribing); err != nil {
			return fmt.Errorf("restart transcript: %w", err)
		}
		go s.run(t.ID, ep.ID, ep.AudioURL, t.Language)
	default:
		// queued/transcribing: the in-flight run picks up the queued summary
		// when the transcript lands.
	}
	return nil
}

func newTranscript(ep *models.Episode, provider string) *models.Transcript {
	now := time.Now().UTC()
	return &models.Transcript{
		ID:        uuid.New(),
		EpisodeID: ep.ID,
		Status:    models.TranscriptStatusTranscribing,
		Language:  ep.Language,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// run performs transcription (with at most one language correction) and then
// summarizes every queued level. It recovers from panics and always leaves
// the records in a terminal state on failure.
func (s *Service) run(transcriptID, episodeID uuid.UUID, audioURL, language string) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline run", "error", r, "episode_id", episodeID)
			s.failTranscription(ctx, transcriptID, episodeID, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := s.transcriber.Transcribe(ctx, audioURL, language)
	if err != nil {
		s.failTranscription(ctx, transcriptID, episodeID, err.Error())
		return
	}

	if mismatched(language, result.DetectedLanguage) {
		transcriptID, result, err = s.correctLanguage(ctx, episodeID, audioURL, result.DetectedLanguage)
		if err != nil {
			return // correctLanguage already terminalized the records
		}
	}

	err = s.store.UpdateTranscriptStatus(ctx, transcriptID, models.TranscriptStatusReady,
		store.WithTranscriptResult(store.TranscriptResult{
			FullText:     result.FullText,
			Language:     result.DetectedLanguage,
			Duration:     result.Duration,
			SpeakerCount: result.SpeakerCount,
			Utterances:   result.Utterances,
		}))
	if err != nil {
		slog.Error("persisting transcript failed", "episode_id", episodeID, "error", err)
		s.failTranscription(ctx, transcriptID, episodeID, fmt.Sprintf("storing transcript: %v", err))
		return
	}
	s.invalidateStatus(ctx, episodeID)
	slog.Info("transcript ready", "episode_id", episodeID,
		"language", result.DetectedLanguage, "speakers", result.SpeakerCount)

	s.summarizeQueued(episodeID)
}

// mismatched reports whether the provider detected a different language than
// the job was configured with.
func mismatched(requested, detected string) bool {
	return requested != "" && detected != "" && requested != detected
}

// correctLanguage replaces the stale transcript with one in the detected
// language and re-transcribes exactly once. The prior transcript was produced
// under a wrong language hint and is treated as invalid. If the corrected run
// itself fails, the job is terminalized as failed rather than looping.
func (s *Service) correctLanguage(ctx context.Context, episodeID uuid.UUID, audioURL, detected string) (uuid.UUID, *transcribe.Result, error) {
	slog.Info("language mismatch, reprocessing", "episode_id", episodeID, "detected", detected)

	if err := s.store.DeleteTranscript(ctx, episodeID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("deleting stale transcript failed", "episode_id", episodeID, "error", err)
	}

	now := time.Now().UTC()
	t := &models.Transcript{
		ID:        uuid.New(),
		EpisodeID: episodeID,
		Status:    models.TranscriptStatusTranscribing,
		Language:  detected,
		Provider:  s.transcriber.Name(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTranscript(ctx, t); err != nil {
		s.failSummaries(ctx, episodeID, fmt.Sprintf("language correction to %q failed: %v", detected, err))
		return uuid.Nil, nil, err
	}

	if err := s.store.UpdateEpisodeLanguage(ctx, episodeID, detected); err != nil {
		slog.Warn("updating episode language failed", "episode_id", episodeID, "error", err)
	}
	s.invalidateStatus(ctx, episodeID)

	result, err := s.transcriber.Transcribe(ctx, audioURL, detected)
	if err != nil {
		msg := fmt.Sprintf("language correction to %q failed: %v", detected, err)
		s.failTranscription(ctx, t.ID, episodeID, msg)
		return uuid.Nil, nil, err
	}
	if mismatched(detected, result.DetectedLanguage) {
		// Correction fires at most once per job; accept the second result
		// rather than oscillating.
		slog.Warn("language mismatch after correction, accepting result",
			"episode_id", episodeID, "requested", detected, "detected", result.DetectedLanguage)
		result.DetectedLanguage = detected
	}
	return t.ID, result, nil
}

// summarizeQueued processes every summary waiting on the transcript.
func (s *Service) summarizeQueued(episodeID uuid.UUID) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in summarization", "error", r, "episode_id", episodeID)
			s.failSummaries(ctx, episodeID, fmt.Sprintf("panic: %v", r))
		}
	}()

	t, err := s.store.GetTranscript(ctx, episodeID)
	if err != nil || t.Status != models.TranscriptStatusReady {
		s.failSummaries(ctx, episodeID, "transcript unavailable for summarization")
		return
	}

	ep, err := s.store.GetEpisode(ctx, episodeID)
	if err != nil {
		s.failSummaries(ctx, episodeID, fmt.Sprintf("loading episode: %v", err))
		return
	}

	queued, err := s.store.ListQueuedSummaries(ctx, episodeID)
	if err != nil {
		slog.Error("listing queued summaries failed", "episode_id", episodeID, "error", err)
		return
	}

	for _, sum := range queued {
		s.summarizeOne(ctx, ep, t, sum)
	}
}

func (s *Service) summarizeOne(ctx context.Context, ep *models.Episode, t *models.Transcript, sum *models.Summary) {
	if err := s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusSummarizing); err != nil {
		slog.Error("marking summary summarizing failed", "summary_id", sum.ID, "error", err)
		return
	}
	s.invalidateStatus(ctx, ep.ID)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.summarizer.Summarize(callCtx, summarize.Request{
		Title:    ep.Title,
		FullText: t.FullText,
		Language: t.Language,
		Level:    sum.Level,
	})
	if err != nil {
		_ = s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusFailed,
			store.WithSummaryError(err.Error()))
		s.invalidateStatus(ctx, ep.ID)
		slog.Error("summarization failed", "episode_id", ep.ID, "level", sum.Level, "error", err)
		return
	}

	err = s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusReady,
		store.WithSummaryContent(content),
		store.WithSummaryLanguage(t.Language),
		store.WithSummaryModel(s.summarizer.Model()))
	if err != nil {
		_ = s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusFailed,
			store.WithSummaryError(fmt.Sprintf("storing summary: %v", err)))
	}
	s.invalidateStatus(ctx, ep.ID)
	slog.Info("summary ready", "episode_id", ep.ID, "level", sum.Level)
}

// failTranscription terminalizes the transcript and every summary waiting on it.
func (s *Service) failTranscription(ctx context.Context, transcriptID, episodeID uuid.UUID, msg string) {
	if err := s.store.UpdateTranscriptStatus(ctx, transcriptID, models.TranscriptStatusFailed,
		store.WithTranscriptError(msg)); err != nil {
		slog.Error("marking transcript failed errored", "transcript_id", transcriptID, "error", err)
	}
	s.failSummaries(ctx, episodeID, "transcription failed: "+msg)
	slog.Error("transcription failed", "episode_id", episodeID, "error", msg)
}

func (s *Service) failSummaries(ctx context.Context, episodeID uuid.UUID, msg string) {
	queued, err := s.store.ListQueuedSummaries(ctx, episodeID)
	if err != nil {
		slog.Error("listing queued summaries failed", "episode_id", episodeID, "error", err)
		return
	}
	for _, sum := range queued {
		_ = s.store.UpdateSummaryStatus(ctx, sum.ID, models.SummaryStatusFailed,
			store.WithSummaryError(msg))
	}
	s.invalidateStatus(ctx, episodeID)
}

func (s *Service) invalidateStatus(ctx context.Context, episodeID uuid.UUID) {
	_ = s.cache.DeleteEpisodeStatus(ctx, episodeID)
}
