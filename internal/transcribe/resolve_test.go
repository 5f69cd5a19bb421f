package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve_DirectAudioSkipsNetwork(t *testing.T) {
	var probes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer srv.Close()

	r := NewResolver(5, time.Second)
	url := srv.URL + "/episodes/42.mp3"

	got := r.Resolve(context.Background(), url)
	assert.Equal(t, url, got)
	assert.Equal(t, int32(0), probes.Load(), "direct audio URL must not be probed")
}

func TestResolve_DirectAudioExtCaseInsensitive(t *testing.T) {
	r := NewResolver(5, time.Second)
	url := "https://cdn.example.com/show/EP42.MP3"
	assert.Equal(t, url, r.Resolve(context.Background(), url))
}

func TestResolve_FollowsChainToAudio(t *testing.T) {
	var final string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/track":
			http.Redirect(w, r, "/measure", http.StatusFound)
		case "/measure":
			http.Redirect(w, r, final, http.StatusMovedPermanently)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()
	final = srv.URL + "/audio/ep.mp3"

	r := NewResolver(5, time.Second)
	got := r.Resolve(context.Background(), srv.URL+"/track")
	assert.Equal(t, final, got)
}

func TestResolve_RelativeLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/go" {
			w.Header().Set("Location", "audio/ep.m4a")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewResolver(5, time.Second)
	got := r.Resolve(context.Background(), srv.URL+"/go")
	assert.Equal(t, srv.URL+"/audio/ep.m4a", got)
}

func TestResolve_HopCap(t *testing.T) {
	var probes atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := probes.Add(1)
		// Endless chain of non-audio redirects.
		http.Redirect(w, r, fmt.Sprintf("%s/hop/%d", srv.URL, n), http.StatusFound)
	}))
	defer srv.Close()

	r := NewResolver(3, time.Second)
	got := r.Resolve(context.Background(), srv.URL+"/hop/0")

	assert.Equal(t, int32(3), probes.Load(), "walk stops at the hop cap")
	assert.Equal(t, srv.URL+"/hop/3", got, "last seen URL is returned")
}

func TestResolve_NonRedirectStopsWalk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewResolver(5, time.Second)
	url := srv.URL + "/stream"
	assert.Equal(t, url, r.Resolve(context.Background(), url))
}

func TestResolve_ProbeFailureKeepsLastURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://127.0.0.1:1/unreachable", http.StatusFound)
	}))
	defer srv.Close()

	r := NewResolver(5, time.Second)
	got := r.Resolve(context.Background(), srv.URL+"/go")
	assert.Equal(t, "http://127.0.0.1:1/unreachable", got)
}

func TestResolve_HopTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewResolver(5, 50*time.Millisecond)
	url := srv.URL + "/slow"

	start := time.Now()
	got := r.Resolve(context.Background(), url)
	assert.Equal(t, url, got)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "probe must give up at the hop timeout")
}
