// Package narrative turns a rule-based diagnosis into a short consultant-style
// explanation written by a generative model.
package narrative

import (
	"context"
	"errors"

	"mirror-backend/internal/diagnosis"
)

// ErrNotConfigured is returned when no model provider is available.
var ErrNotConfigured = errors.New("narrative provider not configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("narrative provider returned empty text")

// Photo is an uploaded face photo passed to multimodal providers.
type Photo struct {
	MimeType string
	Data     []byte
}

// Request carries everything needed to write one explanation.
type Request struct {
	Input  diagnosis.Input
	Result diagnosis.Result
	Locale diagnosis.Locale
	Photos []Photo
}

// Explanation is the provider output.
type Explanation struct {
	Text       string
	Provider   string
	Model      string
	PromptHash string
}

// Generator writes consultant explanations.
type Generator interface {
	Name() string
	Explain(ctx context.Context, req Request) (Explanation, error)
}

// Placeholder is used when no provider is configured.
type Placeholder struct{}

func (Placeholder) Name() string { return "none" }

// Explain returns ErrNotConfigured.
func (Placeholder) Explain(context.Context, Request) (Explanation, error) {
	return Explanation{}, ErrNotConfigured
}
