package transcribe

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	defaultMaxRedirectHops = 5
	defaultHopTimeout      = 3 * time.Second
)

// directAudioExts are file extensions that identify a URL as pointing
// directly at audio; such URLs skip redirect resolution entirely.
var directAudioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".flac": true,
}

// Resolver unwraps tracking-redirect chains in front of podcast audio URLs.
// Resolution is best effort: any probe failure or timeout stops the walk and
// the last-known URL is used, never an error.
type Resolver struct {
	client     *http.Client
	maxHops    int
	hopTimeout time.Duration
}

// NewResolver creates a Resolver that follows at most maxHops redirects with
// a per-hop timeout.
func NewResolver(maxHops int, hopTimeout time.Duration) *Resolver {
	if maxHops <= 0 {
		maxHops = defaultMaxRedirectHops
	}
	if hopTimeout <= 0 {
		hopTimeout = defaultHopTimeout
	}
	return &Resolver{
		client: &http.Client{
			// Redirects are followed manually so the hop count and per-hop
			// timeout stay under our control.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxHops:    maxHops,
		hopTimeout: hopTimeout,
	}
}

// Resolve returns the final audio URL for rawURL. A URL with a recognized
// direct-audio extension is returned unchanged without any network calls.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if hasDirectAudioExt(rawURL) {
		return rawURL
	}

	current := rawURL
	for hop := 0; hop < r.maxHops; hop++ {
		next, ok := r.probe(ctx, current)
		if !ok {
			return current
		}
		current = next
		if hasDirectAudioExt(current) {
			return current
		}
	}
	return current
}

// probe issues a single HEAD request without following redirects and returns
// the redirect target, if any. The hop timeout is established before the
// request and released on every exit path via defer.
func (r *Resolver) probe(ctx context.Context, rawURL string) (string, bool) {
	hopCtx, cancel := context.WithTimeout(ctx, r.hopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Timeout or transport error: stop resolving, keep the last URL.
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return "", false
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", false
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	target, err := base.Parse(loc)
	if err != nil {
		return "", false
	}
	return target.String(), true
}

func hasDirectAudioExt(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return directAudioExts[strings.ToLower(path.Ext(u.Path))]
}
