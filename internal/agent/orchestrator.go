package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/persona"
)

// maxConcurrentCalls caps outbound persona calls. The registry is small, but
// the cap keeps outbound connections bounded if it ever grows.
const maxConcurrentCalls = 16

// Orchestrator fans one query out to every registered persona concurrently.
type Orchestrator struct {
	caller *Caller
}

// NewOrchestrator creates an Orchestrator over the given caller.
func NewOrchestrator(caller *Caller) *Orchestrator {
	return &Orchestrator{caller: caller}
}

// RunAll invokes every persona concurrently and returns their responses in
// registry order, regardless of completion order. The result always has
// exactly persona.Count() entries: individual call failures surface as the
// caller's fallback response, never as an error.
func (o *Orchestrator) RunAll(ctx context.Context, query string) []domain.AgentResponse {
	personas := persona.All()
	responses := make([]domain.AgentResponse, len(personas))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)
	for i, p := range personas {
		g.Go(func() error {
			responses[i] = o.caller.Invoke(ctx, p, query)
			return nil
		})
	}
	// Invoke never returns an error, so Wait only synchronizes.
	_ = g.Wait()

	return responses
}
