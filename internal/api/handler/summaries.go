// Package handler contains the HTTP handlers for the processing pipeline.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/api/response"
	"github.com/liad142/podcatch/internal/cache"
	"github.com/liad142/podcatch/internal/pipeline"
	"github.com/liad142/podcatch/internal/store"
)

// statusCacheTTL only has to absorb synchronized polling bursts; the
// database stays the source of truth.
const statusCacheTTL = 2 * time.Second

// Pipeline defines the interface the handlers depend on.
type Pipeline interface {
	Submit(ctx context.Context, episodeID uuid.UUID, level string) (*pipeline.Snapshot, error)
	Status(ctx context.Context, episodeID uuid.UUID) (*pipeline.Snapshot, error)
}

// NewSubmitSummaryHandler returns the handler for
// POST /api/v1/episodes/{episodeID}/summaries. It starts (or no-ops on) a job
// and returns immediately; completion is observed by polling the GET endpoint.
func NewSubmitSummaryHandler(svc Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episodeID, ok := episodeIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			Level string `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Level == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "level is required", nil)
			return
		}

		snap, err := svc.Submit(r.Context(), episodeID, req.Level)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrInvalidLevel):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"level must be quick or deep", nil)
			case errors.Is(err, pipeline.ErrNoAudioURL):
				response.Error(w, http.StatusBadRequest, "NO_AUDIO_URL",
					"Episode has no resolvable audio URL", nil)
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "EPISODE_NOT_FOUND",
					"Episode not found", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, snap)
	}
}

// NewGetSummariesHandler returns the handler for
// GET /api/v1/episodes/{episodeID}/summaries. Snapshots are briefly cached to
// keep many concurrently polling clients off the database.
func NewGetSummariesHandler(svc Pipeline, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		episodeID, ok := episodeIDParam(w, r)
		if !ok {
			return
		}

		if cached, hit, err := ca.GetEpisodeStatus(r.Context(), episodeID); err == nil && hit {
			response.JSON(w, json.RawMessage(cached))
			return
		}

		snap, err := svc.Status(r.Context(), episodeID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "EPISODE_NOT_FOUND",
					"Episode not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if payload, err := json.Marshal(snap); err == nil {
			_ = ca.SetEpisodeStatus(r.Context(), episodeID, payload, statusCacheTTL)
		}

		response.JSON(w, snap)
	}
}

func episodeIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "episodeID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"episodeID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
