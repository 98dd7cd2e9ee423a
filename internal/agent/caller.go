// Package agent implements the persona fan-out pipeline: one model call per
// persona, plus the synthesis stage that aggregates their answers.
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/llm"
	"github.com/groundedhq/grounded/internal/persona"
)

const (
	// Persona calls lean creative so the personas actually diverge.
	personaTemperature = 0.7
	personaMaxTokens   = 200

	// FallbackResponse is returned in place of a persona answer when the
	// underlying call fails for any reason.
	FallbackResponse = "I'm having trouble connecting right now. Please try again later."
)

// Caller invokes the model once per persona. Invoke never fails outwardly:
// any transport or service error is logged and replaced with a fixed
// placeholder response.
type Caller struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewCaller creates a Caller on top of the given generator.
func NewCaller(gen llm.Generator, logger *slog.Logger) *Caller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Caller{gen: gen, logger: logger}
}

// Invoke asks one persona for its opinion on the query.
func (c *Caller) Invoke(ctx context.Context, p persona.Persona, query string) domain.AgentResponse {
	text, err := c.gen.Generate(ctx, llm.Request{
		System:      p.SystemPrompt,
		Prompt:      query,
		MaxTokens:   personaMaxTokens,
		Temperature: personaTemperature,
	})
	if err != nil {
		c.logger.Warn("persona call failed, using fallback response",
			"persona", p.ID, "error", err)
		text = FallbackResponse
	}

	return domain.AgentResponse{
		PersonaID: p.ID,
		Response:  text,
		Timestamp: time.Now(),
	}
}
