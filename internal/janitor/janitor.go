// Package janitor runs periodic background maintenance: expired sessions are
// purged and analyses stranded in processing status are marked failed.
package janitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/groundedhq/grounded/internal/store"
)

const (
	sweepInterval = 5 * time.Minute

	// staleAfter bounds how long an analysis may sit in processing status.
	// The pipeline finishes or fails well within this; anything older was
	// stranded by a crash and must not stay processing forever.
	staleAfter = 10 * time.Minute
)

// Start launches the maintenance worker. It stops when ctx is canceled.
func Start(ctx context.Context, repo store.Repository) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("janitor started", "interval", sweepInterval)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo)
			case <-ctx.Done():
				slog.Info("janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository) {
	removed, err := repo.CleanupExpiredSessions(ctx)
	if err != nil {
		slog.Error("janitor failed to cleanup sessions", "error", err)
	} else if removed > 0 {
		slog.Info("janitor removed expired sessions", "count", removed)
	}

	failed, err := repo.FailStaleAnalyses(ctx, staleAfter)
	if err != nil {
		slog.Error("janitor failed to sweep stale analyses", "error", err)
	} else if failed > 0 {
		slog.Warn("janitor failed stale processing analyses", "count", failed)
	}
}
