// Package transcribe obtains diarized transcripts from an external
// speech-to-text provider, tolerating tracking-redirect chains, transient
// provider errors, and oversized payloads.
package transcribe

import (
	"context"
	"fmt"

	"github.com/liad142/podcatch/internal/config"
	"github.com/liad142/podcatch/pkg/models"
)

// Result is the structured output of a transcription: ordered
// speaker-attributed utterances, the full concatenated text, total duration
// in seconds, distinct-speaker count, and the provider's detected language.
type Result struct {
	Utterances       []models.Utterance
	FullText         string
	Duration         float64
	SpeakerCount     int
	DetectedLanguage string
}

// Provider is the interface to the speech-to-text service. language is an
// ISO-639-1 hint; the provider reports the language it actually detected,
// which may differ.
type Provider interface {
	Transcribe(ctx context.Context, audioURL, language string) (*Result, error)
	Name() string
}

// NewProvider constructs the configured provider wrapped in the resilience
// adapter (redirect resolution, retry with backoff). Called once at startup.
func NewProvider(cfg config.TranscriptionConfig) (Provider, error) {
	var inner Provider
	switch cfg.Provider {
	case "assemblyai":
		inner = NewAssemblyAIClient(AssemblyAIConfig{
			APIKey:          cfg.APIKey,
			BaseURL:         cfg.BaseURL,
			PollInterval:    cfg.PollInterval,
			PollTimeout:     cfg.PollTimeout,
			MaxPayloadBytes: cfg.MaxPayloadBytes,
		})
	case "mock":
		// Local development without an AssemblyAI account.
		inner = builtinMock{}
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: must be one of assemblyai, mock", cfg.Provider)
	}

	return NewAdapter(inner, AdapterConfig{
		MaxRetries:      cfg.MaxRetries,
		RetryBaseDelay:  cfg.RetryBaseDelay,
		MaxRedirectHops: cfg.MaxRedirectHops,
		HopTimeout:      cfg.HopTimeout,
	}), nil
}

// builtinMock returns a fixed transcript for local development.
type builtinMock struct{}

func (builtinMock) Name() string { return "mock" }

func (builtinMock) Transcribe(_ context.Context, _, language string) (*Result, error) {
	if language == "" {
		language = "en"
	}
	return &Result{
		Utterances: []models.Utterance{
			{Speaker: "A", Start: 0, End: 4.2, Text: "Welcome back to the show."},
			{Speaker: "B", Start: 4.2, End: 9.8, Text: "Thanks for having me."},
		},
		FullText:         "Welcome back to the show. Thanks for having me.",
		Duration:         9.8,
		SpeakerCount:     2,
		DetectedLanguage: language,
	}, nil
}
