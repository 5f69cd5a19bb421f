package transcribe

import (
	"context"
	"log/slog"
	"time"
)

// AdapterConfig tunes the resilience wrapper.
type AdapterConfig struct {
	MaxRetries      int
	RetryBaseDelay  time.Duration
	MaxRedirectHops int
	HopTimeout      time.Duration
}

// Adapter wraps a Provider with redirect resolution of the audio URL and a
// bounded retry loop around the provider call. It implements Provider itself
// so callers see one interface.
type Adapter struct {
	inner    Provider
	resolver *Resolver
	retry    RetryPolicy
}

// NewAdapter wraps inner with the resilience behaviors.
func NewAdapter(inner Provider, cfg AdapterConfig) *Adapter {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	return &Adapter{
		inner:    inner,
		resolver: NewResolver(cfg.MaxRedirectHops, cfg.HopTimeout),
		retry:    RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay},
	}
}

func (a *Adapter) Name() string { return a.inner.Name() }

// Transcribe resolves audioURL past tracking redirects, then calls the
// provider with retry. Transient errors are absorbed here; only permanent
// errors and exhausted retries reach the caller.
func (a *Adapter) Transcribe(ctx context.Context, audioURL, language string) (*Result, error) {
	resolved := a.resolver.Resolve(ctx, audioURL)
	if resolved != audioURL {
		slog.Debug("resolved audio URL", "from", audioURL, "to", resolved)
	}

	var result *Result
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		r, err := a.inner.Transcribe(ctx, resolved, language)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var _ Provider = (*Adapter)(nil)
