package narrative

import (
	"context"
	"errors"
	"time"

	"mirror-backend/internal/shared/metrics"
	"mirror-backend/internal/shared/telemetry"
)

// Narrative sources.
const (
	SourceModel = "model"
	SourceRules = "rules"
)

// Narration is what the customer is shown.
type Narration struct {
	Text       string `json:"text"`
	Source     string `json:"source"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	PromptHash string `json:"promptHash,omitempty"`
}

// Narrate asks gen for an explanation and falls back to the rule logic when
// the generator is missing, fails, or the diagnosis recommended nothing.
// It never returns an error; failures are logged.
func Narrate(ctx context.Context, gen Generator, req Request) Narration {
	fallback := Narration{Text: req.Result.Logic, Source: SourceRules}
	if req.Result.Empty() {
		return fallback
	}
	if gen == nil {
		return fallback
	}

	start := time.Now()
	out, err := gen.Explain(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrNotConfigured) {
			outcome = "disabled"
		} else {
			telemetry.Error("narrative.failed", map[string]any{
				"provider":    gen.Name(),
				"duration_ms": elapsed.Milliseconds(),
				"error":       err,
			})
		}
		metrics.ObserveNarrative(gen.Name(), outcome, elapsed)
		if prompt, perr := BuildPrompt(req); perr == nil {
			fallback.PromptHash = HashPrompt(prompt)
		}
		return fallback
	}

	metrics.ObserveNarrative(gen.Name(), "ok", elapsed)
	return Narration{
		Text:       out.Text,
		Source:     SourceModel,
		Provider:   out.Provider,
		Model:      out.Model,
		PromptHash: out.PromptHash,
	}
}
