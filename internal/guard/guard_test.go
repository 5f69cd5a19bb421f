package guard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/guard"
	"github.com/stretchr/testify/assert"
)

// mockCache implements cache.Cache with an in-memory counter map.
type mockCache struct {
	counts  map[string]int64
	incrErr error
}

func newMockCache() *mockCache {
	return &mockCache{counts: make(map[string]int64)}
}

func (m *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (m *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (m *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (m *mockCache) Ping(_ context.Context) error                                     { return nil }
func (m *mockCache) SetEpisodeStatus(_ context.Context, _ uuid.UUID, _ []byte, _ time.Duration) error {
	return nil
}
func (m *mockCache) GetEpisodeStatus(_ context.Context, _ uuid.UUID) ([]byte, bool, error) {
	return nil, false, nil
}
func (m *mockCache) DeleteEpisodeStatus(_ context.Context, _ uuid.UUID) error { return nil }

func (m *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.counts[key]++
	return m.counts[key], nil
}

func TestAllow_WithinBudget(t *testing.T) {
	g := guard.New(newMockCache())

	res := g.Allow(context.Background(), "key-abc", 3, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, 2, res.Remaining)
}

func TestAllow_OverBudget(t *testing.T) {
	g := guard.New(newMockCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := g.Allow(ctx, "key-abc", 3, time.Minute)
		assert.True(t, res.Allowed)
	}

	res := g.Allow(ctx, "key-abc", 3, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestAllow_IdentifiersIndependent(t *testing.T) {
	g := guard.New(newMockCache())
	ctx := context.Background()

	g.Allow(ctx, "key-a", 1, time.Minute)
	res := g.Allow(ctx, "key-a", 1, time.Minute)
	assert.False(t, res.Allowed)

	res = g.Allow(ctx, "key-b", 1, time.Minute)
	assert.True(t, res.Allowed)
}

func TestAllow_FailsOpen(t *testing.T) {
	mc := newMockCache()
	mc.incrErr = errors.New("redis down")
	g := guard.New(mc)

	res := g.Allow(context.Background(), "key-abc", 3, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Remaining)
}

func TestAllowQuota_WithinBudget(t *testing.T) {
	g := guard.New(newMockCache())
	userID := uuid.New()

	res := g.AllowQuota(context.Background(), userID, "summaries", 2)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestAllowQuota_Exhausted(t *testing.T) {
	g := guard.New(newMockCache())
	ctx := context.Background()
	userID := uuid.New()

	g.AllowQuota(ctx, userID, "summaries", 2)
	g.AllowQuota(ctx, userID, "summaries", 2)

	res := g.AllowQuota(ctx, userID, "summaries", 2)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestAllowQuota_PerUserAndFeature(t *testing.T) {
	g := guard.New(newMockCache())
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	g.AllowQuota(ctx, alice, "summaries", 1)
	res := g.AllowQuota(ctx, alice, "summaries", 1)
	assert.False(t, res.Allowed)

	// Another user and another feature both have fresh budgets.
	assert.True(t, g.AllowQuota(ctx, bob, "summaries", 1).Allowed)
	assert.True(t, g.AllowQuota(ctx, alice, "transcripts", 1).Allowed)
}

func TestAllowQuota_FailsOpen(t *testing.T) {
	mc := newMockCache()
	mc.incrErr = errors.New("redis down")
	g := guard.New(mc)

	res := g.AllowQuota(context.Background(), uuid.New(), "summaries", 2)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}
