package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liad142/podcatch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Episodes ---

func (s *PostgresStore) CreateEpisode(ctx context.Context, ep *models.Episode) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO episodes (id, title, audio_url, language, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ep.ID, ep.Title, ep.AudioURL, ep.Language, ep.PublishedAt, ep.CreatedAt, ep.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create episode: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	var ep models.Episode
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, audio_url, language, published_at, created_at, updated_at
		 FROM episodes WHERE id = $1`, id,
	).Scan(&ep.ID, &ep.Title, &ep.AudioURL, &ep.Language, &ep.PublishedAt, &ep.CreatedAt, &ep.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return &ep, nil
}

func (s *PostgresStore) UpdateEpisodeLanguage(ctx context.Context, id uuid.UUID, language string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE episodes SET language = $2, updated_at = NOW() WHERE id = $1`, id, language)
	if err != nil {
		return fmt.Errorf("update episode language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Transcripts ---

func (s *PostgresStore) CreateTranscript(ctx context.Context, t *models.Transcript) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (id, episode_id, status, full_text, language, provider, duration_seconds, speaker_count, utterances, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.EpisodeID, t.Status, t.FullText, t.Language, t.Provider,
		t.Duration, t.SpeakerCount, t.Utterances, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, episodeID uuid.UUID) (*models.Transcript, error) {
	var t models.Transcript
	err := s.pool.QueryRow(ctx,
		`SELECT id, episode_id, status, full_text, language, provider, duration_seconds, speaker_count, utterances, error_message, created_at, updated_at
		 FROM transcripts WHERE episode_id = $1`, episodeID,
	).Scan(&t.ID, &t.EpisodeID, &t.Status, &t.FullText, &t.Language, &t.Provider,
		&t.Duration, &t.SpeakerCount, &t.Utterances, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return &t, nil
}

var validTranscriptTransitions = map[string][]string{
	models.TranscriptStatusQueued:       {models.TranscriptStatusTranscribing, models.TranscriptStatusFailed},
	models.TranscriptStatusTranscribing: {models.TranscriptStatusReady, models.TranscriptStatusFailed},
	models.TranscriptStatusFailed:       {models.TranscriptStatusTranscribing},
}

func (s *PostgresStore) UpdateTranscriptStatus(ctx context.Context, id uuid.UUID, status string, opts ...TranscriptUpdateOption) error {
	params := &TranscriptUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM transcripts WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get transcript status: %w", err)
	}

	if !transitionAllowed(validTranscriptTransitions, currentStatus, status) {
		return fmt.Errorf("invalid transcript status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE transcripts SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if params.Result != nil {
		query += fmt.Sprintf(", full_text = $%d, language = $%d, duration_seconds = $%d, speaker_count = $%d, utterances = $%d",
			argIdx, argIdx+1, argIdx+2, argIdx+3, argIdx+4)
		args = append(args, params.Result.FullText, params.Result.Language,
			params.Result.Duration, params.Result.SpeakerCount, params.Result.Utterances)
		argIdx += 5
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update transcript status: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteTranscript(ctx context.Context, episodeID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transcripts WHERE episode_id = $1`, episodeID)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Summaries ---

func (s *PostgresStore) CreateSummary(ctx context.Context, sum *models.Summary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO summaries (id, episode_id, level, status, content, language, model, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sum.ID, sum.EpisodeID, sum.Level, sum.Status, sum.Content, sum.Language, sum.Model,
		sum.CreatedAt, sum.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, episodeID uuid.UUID, level string) (*models.Summary, error) {
	var sum models.Summary
	err := s.pool.QueryRow(ctx,
		`SELECT id, episode_id, level, status, content, language, model, error_message, created_at, updated_at
		 FROM summaries WHERE episode_id = $1 AND level = $2`, episodeID, level,
	).Scan(&sum.ID, &sum.EpisodeID, &sum.Level, &sum.Status, &sum.Content, &sum.Language,
		&sum.Model, &sum.ErrorMessage, &sum.CreatedAt, &sum.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &sum, nil
}

func (s *PostgresStore) ListSummaries(ctx context.Context, episodeID uuid.UUID) ([]*models.Summary, error) {
	return s.listSummaries(ctx,
		`SELECT id, episode_id, level, status, content, language, model, error_message, created_at, updated_at
		 FROM summaries WHERE episode_id = $1 ORDER BY level`, episodeID)
}

// ListQueuedSummaries returns the summaries waiting on the transcript, oldest first.
func (s *PostgresStore) ListQueuedSummaries(ctx context.Context, episodeID uuid.UUID) ([]*models.Summary, error) {
	return s.listSummaries(ctx,
		`SELECT id, episode_id, level, status, content, language, model, error_message, created_at, updated_at
		 FROM summaries WHERE episode_id = $1 AND status = 'queued' ORDER BY created_at`, episodeID)
}

func (s *PostgresStore) listSummaries(ctx context.Context, query string, episodeID uuid.UUID) ([]*models.Summary, error) {
	rows, err := s.pool.Query(ctx, query, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var sums []*models.Summary
	for rows.Next() {
		var sum models.Summary
		if err := rows.Scan(&sum.ID, &sum.EpisodeID, &sum.Level, &sum.Status, &sum.Content,
			&sum.Language, &sum.Model, &sum.ErrorMessage, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		sums = append(sums, &sum)
	}
	return sums, rows.Err()
}

var validSummaryTransitions = map[string][]string{
	models.SummaryStatusQueued:      {models.SummaryStatusSummarizing, models.SummaryStatusFailed},
	models.SummaryStatusSummarizing: {models.SummaryStatusReady, models.SummaryStatusFailed},
	models.SummaryStatusFailed:      {models.SummaryStatusQueued},
}

func (s *PostgresStore) UpdateSummaryStatus(ctx context.Context, id uuid.UUID, status string, opts ...SummaryUpdateOption) error {
	params := &SummaryUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM summaries WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get summary status: %w", err)
	}

	if !transitionAllowed(validSummaryTransitions, currentStatus, status) {
		return fmt.Errorf("invalid summary status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE summaries SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if params.Content != nil {
		query += fmt.Sprintf(", content = $%d", argIdx)
		args = append(args, params.Content)
		argIdx++
	}
	if params.Language != nil {
		query += fmt.Sprintf(", language = $%d", argIdx)
		args = append(args, *params.Language)
		argIdx++
	}
	if params.Model != nil {
		query += fmt.Sprintf(", model = $%d", argIdx)
		args = append(args, *params.Model)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	} else if status == models.SummaryStatusQueued {
		// Re-queue for retry clears the stale failure message.
		query += ", error_message = NULL"
	}

	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update summary status: %w", err)
	}
	return nil
}

func transitionAllowed(transitions map[string][]string, from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
