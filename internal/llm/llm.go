// Package llm wraps the external text-generation service.
package llm

import (
	"context"
)

// Request describes one text-generation call. System carries the instruction
// profile; Prompt carries the user-facing content.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Generator issues one text-generation call and returns the generated text.
// Implementations must bound each call with a timeout so callers never hang.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
