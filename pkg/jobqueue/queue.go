// Package jobqueue schedules episode summarization jobs against a PodCatch
// server. Jobs run one at a time in enqueue order; each submitted job is
// polled on an adaptive jittered schedule until the server reports a
// terminal state or the poll budget runs out. Item statuses mirror the
// server's display states as observed by polling.
package jobqueue

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/liad142/podcatch/pkg/client"
	"github.com/liad142/podcatch/pkg/models"
)

// Item statuses. Queued is the only purely client-side status; the rest
// track the display state the server reports while the job is in flight.
const (
	StatusQueued       = "queued"
	StatusTranscribing = "transcribing"
	StatusSummarizing  = "summarizing"
	StatusReady        = "ready"
	StatusFailed       = "failed"
)

// timedOutMessage is the error recorded when a job exhausts its poll budget.
const timedOutMessage = "Processing timed out"

// API is the server surface the queue needs. *client.Client satisfies it.
type API interface {
	SubmitSummary(ctx context.Context, episodeID, level string) (*client.EpisodeStatus, error)
	GetStatus(ctx context.Context, episodeID string) (*client.EpisodeStatus, error)
}

// Config controls scheduling behavior. Zero values fall back to defaults.
type Config struct {
	API   API
	Level string

	// InitialInterval is the delay before the first status poll.
	InitialInterval time.Duration
	// BaseInterval is the steady polling interval before backoff kicks in.
	BaseInterval time.Duration
	// MaxInterval caps the backed-off polling interval.
	MaxInterval time.Duration
	// BackoffEvery is the number of polls between interval increases.
	BackoffEvery int
	// BackoffFactor multiplies the interval at each increase.
	BackoffFactor float64
	// Jitter is the random fraction applied to every interval.
	Jitter float64

	// MaxPollDuration bounds how long a single job may be polled.
	MaxPollDuration time.Duration
	// MaxRetries is the number of automatic resubmissions after a failure.
	MaxRetries int
	// RetryDelay is the wait before an automatic resubmission.
	RetryDelay time.Duration

	// OnChange, if set, is invoked after every item state change. It is
	// called without the queue lock held.
	OnChange func(Item)
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = models.SummaryLevelQuick
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 2 * time.Second
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = 10 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.BackoffEvery <= 0 {
		c.BackoffEvery = 3
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 1.5
	}
	if c.Jitter <= 0 {
		c.Jitter = 0.2
	}
	if c.MaxPollDuration <= 0 {
		c.MaxPollDuration = 10 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	return c
}

// Item is a snapshot of one tracked episode job.
type Item struct {
	EpisodeID  string
	Level      string
	Status     string
	Error      string
	Attempts   int
	Polls      int
	EnqueuedAt time.Time
	StartedAt  time.Time

	// attached jobs were already submitted elsewhere; they skip submission
	// and go straight to polling.
	attached bool
	// retryPending marks a job waiting out its retry delay. Its failed
	// submission must be reissued, not polled, when work resumes.
	retryPending bool
	seq          int
}

// Terminal reports whether the item will receive no further work.
func (it Item) Terminal() bool {
	return it.Status == StatusReady || it.Status == StatusFailed
}

// Stats counts outcomes since the queue was created or last cleared. Total
// counts distinct tracked episodes; re-enqueueing a failed episode reuses
// its slot and does not increment it.
type Stats struct {
	Completed int
	Failed    int
	Total     int
}

// Queue runs summarization jobs one at a time in enqueue order.
type Queue struct {
	cfg Config

	mu           sync.Mutex
	items        map[string]*Item
	order        []string
	processingID string
	timers       map[string]*time.Timer
	paused       bool
	stats        Stats
	closed       bool
	nextSeq      int
}

// New creates a queue. The caller must eventually Close it.
func New(cfg Config) *Queue {
	return &Queue{
		cfg:    cfg.withDefaults(),
		items:  make(map[string]*Item),
		timers: make(map[string]*time.Timer),
	}
}

// Enqueue adds an episode to the queue. Enqueueing an episode that is
// already tracked and not failed is a no-op; a failed episode is reset and
// queued again in the same slot.
func (q *Queue) Enqueue(episodeID string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	existing, ok := q.items[episodeID]
	if ok && existing.Status != StatusFailed {
		q.mu.Unlock()
		return
	}
	if ok {
		// Failed item re-queued by the user: fresh attempt budget.
		existing.Status = StatusQueued
		existing.Error = ""
		existing.Attempts = 0
		existing.Polls = 0
		existing.retryPending = false
		q.order = append(q.order, episodeID)
	} else {
		q.items[episodeID] = &Item{
			EpisodeID:  episodeID,
			Level:      q.cfg.Level,
			Status:     StatusQueued,
			EnqueuedAt: time.Now(),
			seq:        q.nextSeq,
		}
		q.nextSeq++
		q.order = append(q.order, episodeID)
		q.stats.Total++
	}
	it := *q.items[episodeID]
	q.mu.Unlock()
	q.notify(it)

	q.mu.Lock()
	q.dispatchLocked()
	q.mu.Unlock()
}

// Attach registers an episode whose summary was already submitted to the
// server, so the queue only polls for its completion.
func (q *Queue) Attach(episodeID string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if _, ok := q.items[episodeID]; ok {
		q.mu.Unlock()
		return
	}
	q.items[episodeID] = &Item{
		EpisodeID:  episodeID,
		Level:      q.cfg.Level,
		Status:     StatusQueued,
		EnqueuedAt: time.Now(),
		attached:   true,
		seq:        q.nextSeq,
	}
	q.nextSeq++
	q.order = append(q.order, episodeID)
	q.stats.Total++
	it := *q.items[episodeID]
	q.mu.Unlock()
	q.notify(it)

	q.mu.Lock()
	q.dispatchLocked()
	q.mu.Unlock()
}

// Pause stops all scheduled work. In-flight network calls finish but their
// follow-ups are not scheduled until Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

// Paused reports whether the queue is paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Resume restarts work after a Pause. An active job picks up where it left
// off: a pending resubmission is reissued, a submitted job is polled, and
// an unsubmitted one is submitted.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.paused || q.closed {
		return
	}
	q.paused = false
	if q.processingID != "" {
		id := q.processingID
		it := q.items[id]
		switch {
		case it == nil:
		case it.retryPending:
			// The failed submission never reached the server; polling
			// would wait on state that does not exist.
			go q.submit(id)
		case it.Attempts > 0:
			go q.poll(id)
		default:
			go q.submit(id)
		}
		return
	}
	q.dispatchLocked()
}

// Clear removes finished items. Active and queued items are kept and the
// stats are reset to count only what remains.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, it := range q.items {
		if it.Terminal() {
			delete(q.items, id)
		}
	}
	order := q.order[:0]
	for _, id := range q.order {
		if _, ok := q.items[id]; ok {
			order = append(order, id)
		}
	}
	q.order = order
	q.stats = Stats{Total: len(q.items)}
}

// Item returns a snapshot of one tracked episode.
func (q *Queue) Item(episodeID string) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[episodeID]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Items returns snapshots of every tracked episode in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Stats returns a snapshot of the queue's counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close stops all work. The queue must not be used afterwards.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

// dispatchLocked starts the next queued job if no job is active.
func (q *Queue) dispatchLocked() {
	if q.processingID != "" || q.paused || q.closed {
		return
	}
	for len(q.order) > 0 {
		id := q.order[0]
		q.order = q.order[1:]
		it, ok := q.items[id]
		if !ok || it.Status != StatusQueued {
			continue
		}
		it.Status = StatusTranscribing
		it.StartedAt = time.Now()
		q.processingID = id
		go q.submit(id)
		return
	}
}

// submit issues the summary request and schedules the first status poll.
func (q *Queue) submit(id string) {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok || q.processingID != id || q.closed {
		q.mu.Unlock()
		return
	}
	it.retryPending = false
	attached := it.attached
	level := it.Level
	it.Attempts++
	snapshot := *it
	q.mu.Unlock()
	q.notify(snapshot)

	if !attached {
		_, err := q.cfg.API.SubmitSummary(context.Background(), id, level)
		if err != nil {
			q.mu.Lock()
			if !q.currentLocked(id) {
				q.mu.Unlock()
				return
			}
			report := q.handleFailureLocked(id, err.Error())
			q.mu.Unlock()
			q.notify(report)
			return
		}
	}

	q.mu.Lock()
	if q.currentLocked(id) && !q.paused {
		q.scheduleLocked(id, q.nextIntervalLocked(0), func() { q.poll(id) })
	}
	q.mu.Unlock()
}

// poll fetches the episode status and advances the item to match what the
// server reports.
func (q *Queue) poll(id string) {
	q.mu.Lock()
	if !q.currentLocked(id) || q.paused {
		q.mu.Unlock()
		return
	}
	it := q.items[id]
	level := it.Level
	started := it.StartedAt
	q.mu.Unlock()

	state, err := q.cfg.API.GetStatus(context.Background(), id)

	q.mu.Lock()
	if !q.currentLocked(id) {
		q.mu.Unlock()
		return
	}
	it = q.items[id]
	it.Polls++

	var report Item
	var hasReport bool
	if err == nil {
		sum := state.Summaries[level]
		switch sum.State {
		case models.DisplayReady:
			it.Status = StatusReady
			it.Error = ""
			q.stats.Completed++
			report = *it
			q.finishLocked(id)
			q.mu.Unlock()
			q.notify(report)
			return
		case models.DisplayFailed:
			msg := sum.ErrorMessage
			if msg == "" {
				msg = "processing failed"
			}
			report = q.handleFailureLocked(id, msg)
			q.mu.Unlock()
			q.notify(report)
			return
		case models.DisplayTranscribing:
			if it.Status != StatusTranscribing {
				it.Status = StatusTranscribing
				report, hasReport = *it, true
			}
		case models.DisplaySummarizing:
			if it.Status != StatusSummarizing {
				it.Status = StatusSummarizing
				report, hasReport = *it, true
			}
		}
	}
	// Transport errors during polling are not job failures; keep polling
	// until the budget runs out.

	if time.Since(started) > q.cfg.MaxPollDuration {
		it.Status = StatusFailed
		it.Error = timedOutMessage
		q.stats.Failed++
		report = *it
		q.finishLocked(id)
		q.mu.Unlock()
		q.notify(report)
		return
	}

	if !q.paused {
		q.scheduleLocked(id, q.nextIntervalLocked(it.Polls), func() { q.poll(id) })
	}
	q.mu.Unlock()
	if hasReport {
		q.notify(report)
	}
}

// handleFailureLocked applies the retry policy to the active job. It
// returns the snapshot the caller must report once the lock is released.
func (q *Queue) handleFailureLocked(id, msg string) Item {
	it := q.items[id]
	if it.Attempts <= q.cfg.MaxRetries {
		it.Error = msg
		it.Polls = 0
		it.retryPending = true
		if !q.paused {
			q.scheduleLocked(id, q.cfg.RetryDelay, func() { q.submit(id) })
		}
		return *it
	}
	it.Status = StatusFailed
	it.Error = msg
	q.stats.Failed++
	snapshot := *it
	q.finishLocked(id)
	return snapshot
}

// finishLocked releases the processing slot and starts the next job.
func (q *Queue) finishLocked(id string) {
	q.processingID = ""
	delete(q.timers, id)
	q.dispatchLocked()
}

// currentLocked reports whether id is still the active job.
func (q *Queue) currentLocked(id string) bool {
	if q.closed || q.processingID != id {
		return false
	}
	_, ok := q.items[id]
	return ok
}

// scheduleLocked arms a timer for the active job, replacing any prior one.
func (q *Queue) scheduleLocked(id string, d time.Duration, fn func()) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
	}
	q.timers[id] = time.AfterFunc(d, fn)
}

func (q *Queue) nextIntervalLocked(pollsCompleted int) time.Duration {
	base := baseInterval(pollsCompleted, q.cfg)
	return jittered(base, q.cfg.Jitter, rand.Float64())
}

func (q *Queue) notify(it Item) {
	if q.cfg.OnChange != nil {
		q.cfg.OnChange(it)
	}
}
