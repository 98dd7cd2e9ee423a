// Package analysis runs the persona analysis pipeline and guards access to
// its results.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/groundedhq/grounded/internal/agent"
	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/store"
	"github.com/groundedhq/grounded/internal/usage"
)

// Pipeline executes one full analysis run: allocate a record, fan out to
// every persona, synthesize the summary, persist, and account usage.
type Pipeline struct {
	orch    *agent.Orchestrator
	synth   *agent.Synthesizer
	repo    store.Repository
	tracker *usage.Tracker
	logger  *slog.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(orch *agent.Orchestrator, synth *agent.Synthesizer, repo store.Repository, tracker *usage.Tracker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		orch:    orch,
		synth:   synth,
		repo:    repo,
		tracker: tracker,
		logger:  logger,
	}
}

// Run executes the pipeline for one query. ownerID is empty for anonymous
// runs. Individual persona or synthesis failures degrade to placeholders and
// never fail the run; only allocation and persistence errors do.
func (p *Pipeline) Run(ctx context.Context, query string, ownerID string) (*domain.Analysis, error) {
	analysis, err := p.repo.CreateAnalysis(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	// Run detached from the request context: an abandoned request must not
	// strand the record in processing status.
	runCtx := context.WithoutCancel(ctx)

	responses := p.orch.RunAll(runCtx, query)
	summary := p.synth.Summarize(runCtx, responses, query)

	if err := p.persist(runCtx, analysis.ID, responses, summary); err != nil {
		if failErr := p.repo.SetAnalysisStatus(runCtx, analysis.ID, domain.StatusFailed); failErr != nil {
			p.logger.Error("failed to mark analysis failed", "analysis_id", analysis.ID, "error", failErr)
		}
		return nil, err
	}

	// Usage accounting is best-effort: the result is already computed and
	// persisted, so an accounting failure must not surface to the caller.
	if ownerID != "" {
		if _, err := p.tracker.Increment(runCtx, ownerID); err != nil {
			p.logger.Warn("failed to increment usage", "user_id", ownerID, "error", err)
		}
	}

	analysis.Responses = responses
	analysis.Summary = summary
	analysis.Status = domain.StatusCompleted
	return analysis, nil
}

func (p *Pipeline) persist(ctx context.Context, id string, responses []domain.AgentResponse, summary *domain.InsightSummary) error {
	if err := p.repo.SaveResponses(ctx, id, responses); err != nil {
		return fmt.Errorf("save responses: %w", err)
	}
	if err := p.repo.SaveSummary(ctx, id, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if err := p.repo.SetAnalysisStatus(ctx, id, domain.StatusCompleted); err != nil {
		return fmt.Errorf("mark analysis completed: %w", err)
	}
	return nil
}
