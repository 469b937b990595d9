// Package ai wraps the generative model that narrates calendar analyses and
// the parsing that falls back to a deterministic analysis on a bad answer.
package ai

import (
	"context"
	"errors"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("model API key is not set")
	// ErrEmptyResponse is returned when the model answered without text.
	ErrEmptyResponse = errors.New("no response from model")
)

// Generator produces raw text for a prompt. The text may wrap JSON in prose.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
