package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/groundedhq/grounded/internal/domain"
)

// withBackends runs the same contract test against both repository
// implementations.
func withBackends(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})

	t.Run("sqlite", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")
		repo, err := NewSQLite(dbPath)
		if err != nil {
			t.Fatalf("Failed to open sqlite store: %v", err)
		}
		t.Cleanup(func() { repo.Close() })
		fn(t, repo)
	})
}

func makeUser(t *testing.T, repo Repository, email string) *domain.User {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "hash",
		Plan:         domain.PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func TestUserRoundTrip(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "alice@example.com")

		got, err := repo.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got.Email != user.Email || got.Name != user.Name || got.Plan != domain.PlanFree {
			t.Errorf("User mismatch: got %+v", got)
		}

		byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != user.ID {
			t.Errorf("Expected lookup by email to be case-insensitive, got %q", byEmail.ID)
		}

		if _, err := repo.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
		}
	})
}

func TestDuplicateEmailRejected(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		makeUser(t, repo, "taken@example.com")

		dup := &domain.User{
			ID:           uuid.NewString(),
			Email:        "Taken@example.com",
			Name:         "Other",
			PasswordHash: "hash",
			Plan:         domain.PlanFree,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := repo.CreateUser(context.Background(), dup); !errors.Is(err, ErrEmailTaken) {
			t.Errorf("Expected ErrEmailTaken, got %v", err)
		}
	})
}

func TestSetPlanPersistsExpiry(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "plan@example.com")

		expiresAt := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
		if err := repo.SetPlan(ctx, user.ID, domain.PlanPro, expiresAt); err != nil {
			t.Fatalf("SetPlan failed: %v", err)
		}

		got, err := repo.GetUser(ctx, user.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got.Plan != domain.PlanPro {
			t.Errorf("Expected pro plan, got %q", got.Plan)
		}
		if got.PlanExpiresAt == nil || !got.PlanExpiresAt.Equal(expiresAt) {
			t.Errorf("Expected expiry %v, got %v", expiresAt, got.PlanExpiresAt)
		}

		if err := repo.SetPlan(ctx, "missing", domain.PlanPro, expiresAt); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "session@example.com")

		session := &domain.Session{
			Token:     uuid.NewString(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
			CreatedAt: time.Now().Truncate(time.Second),
		}
		if err := repo.CreateSession(ctx, session); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		got, err := repo.GetSession(ctx, session.Token)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.UserID != user.ID {
			t.Errorf("Expected session for user %q, got %q", user.ID, got.UserID)
		}

		if err := repo.DeleteSession(ctx, session.Token); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if _, err := repo.GetSession(ctx, session.Token); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestExpiredSessionsAreInvisibleAndSwept(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "sweep@example.com")

		expired := &domain.Session{
			Token:     uuid.NewString(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		live := &domain.Session{
			Token:     uuid.NewString(),
			UserID:    user.ID,
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now(),
		}
		for _, s := range []*domain.Session{expired, live} {
			if err := repo.CreateSession(ctx, s); err != nil {
				t.Fatalf("CreateSession failed: %v", err)
			}
		}

		if _, err := repo.GetSession(ctx, expired.Token); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected expired session to be invisible, got %v", err)
		}

		removed, err := repo.CleanupExpiredSessions(ctx)
		if err != nil {
			t.Fatalf("CleanupExpiredSessions failed: %v", err)
		}
		if removed != 1 {
			t.Errorf("Expected 1 removed session, got %d", removed)
		}
		if _, err := repo.GetSession(ctx, live.Token); err != nil {
			t.Errorf("Live session should survive cleanup: %v", err)
		}
	})
}

func TestAnalysisRoundTrip(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "owner@example.com")

		analysis, err := repo.CreateAnalysis(ctx, "Should we expand to Europe?", user.ID)
		if err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}
		if analysis.Status != domain.StatusProcessing {
			t.Errorf("Expected processing status, got %q", analysis.Status)
		}

		responses := []domain.AgentResponse{
			{PersonaID: "optimist", Response: "Yes, the market is ready.", Timestamp: time.Now().Truncate(time.Second)},
			{PersonaID: "skeptic", Response: "Regulatory risk is high.", Timestamp: time.Now().Truncate(time.Second)},
		}
		if err := repo.SaveResponses(ctx, analysis.ID, responses); err != nil {
			t.Fatalf("SaveResponses failed: %v", err)
		}

		summary := &domain.InsightSummary{
			MainThemes:       []string{"market timing"},
			Consensus:        "Expansion is viable with caution",
			DivergentViews:   []string{"regulatory concerns"},
			ActionItems:      []string{"research compliance"},
			OverallSentiment: "Cautiously Optimistic",
			SentimentDetail: domain.SentimentDetail{
				Tone:       "measured",
				Confidence: "medium",
				Nuance:     "depends on execution",
			},
			GuardianScores: &domain.GuardianScores{
				Aspects: []domain.AspectScore{
					{Name: "Feasibility", Score: 7.5, SupportCount: 6, Concerns: []string{"timeline"}},
				},
				OverallScore: 7.2,
			},
		}
		if err := repo.SaveSummary(ctx, analysis.ID, summary); err != nil {
			t.Fatalf("SaveSummary failed: %v", err)
		}
		if err := repo.SetAnalysisStatus(ctx, analysis.ID, domain.StatusCompleted); err != nil {
			t.Fatalf("SetAnalysisStatus failed: %v", err)
		}

		got, err := repo.GetAnalysis(ctx, analysis.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if got.Status != domain.StatusCompleted {
			t.Errorf("Expected completed status, got %q", got.Status)
		}
		if got.OwnerID != user.ID {
			t.Errorf("Expected owner %q, got %q", user.ID, got.OwnerID)
		}
		if len(got.Responses) != 2 || got.Responses[0].PersonaID != "optimist" {
			t.Errorf("Responses not preserved in order: %+v", got.Responses)
		}
		if got.Summary == nil || got.Summary.Consensus != summary.Consensus {
			t.Errorf("Summary not preserved: %+v", got.Summary)
		}
		if got.Summary.GuardianScores == nil || got.Summary.GuardianScores.OverallScore != 7.2 {
			t.Errorf("Guardian scores not preserved: %+v", got.Summary.GuardianScores)
		}

		if _, err := repo.GetAnalysis(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for unknown analysis, got %v", err)
		}
	})
}

func TestListAnalysesByOwner(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		owner := makeUser(t, repo, "list@example.com")
		other := makeUser(t, repo, "other@example.com")

		for i := 0; i < 3; i++ {
			if _, err := repo.CreateAnalysis(ctx, fmt.Sprintf("question %d", i), owner.ID); err != nil {
				t.Fatalf("CreateAnalysis failed: %v", err)
			}
			time.Sleep(5 * time.Millisecond)
		}
		if _, err := repo.CreateAnalysis(ctx, "someone else's question", other.ID); err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}

		analyses, err := repo.ListAnalysesByOwner(ctx, owner.ID, 10)
		if err != nil {
			t.Fatalf("ListAnalysesByOwner failed: %v", err)
		}
		if len(analyses) != 3 {
			t.Fatalf("Expected 3 analyses, got %d", len(analyses))
		}
		if analyses[0].Query != "question 2" {
			t.Errorf("Expected newest first, got %q", analyses[0].Query)
		}

		limited, err := repo.ListAnalysesByOwner(ctx, owner.ID, 2)
		if err != nil {
			t.Fatalf("ListAnalysesByOwner failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("Expected limit of 2 respected, got %d", len(limited))
		}
	})
}

func TestClaimAnalysis(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "claim@example.com")

		anonymous, err := repo.CreateAnalysis(ctx, "unowned question", "")
		if err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}

		if err := repo.ClaimAnalysis(ctx, anonymous.ID, user.ID); err != nil {
			t.Fatalf("ClaimAnalysis failed: %v", err)
		}
		got, err := repo.GetAnalysis(ctx, anonymous.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if got.OwnerID != user.ID {
			t.Errorf("Expected owner %q after claim, got %q", user.ID, got.OwnerID)
		}

		// A second claim on an already-owned analysis conflicts.
		if err := repo.ClaimAnalysis(ctx, anonymous.ID, "someone-else"); !errors.Is(err, ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
		// A missing analysis is not found.
		if err := repo.ClaimAnalysis(ctx, "missing", user.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		analysis, err := repo.CreateAnalysis(ctx, "contested question", "")
		if err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}

		const claimants = 8
		var wg sync.WaitGroup
		errs := make([]error, claimants)
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.ClaimAnalysis(ctx, analysis.ID, fmt.Sprintf("claimant-%d", i))
			}(i)
		}
		wg.Wait()

		var winners int
		for _, err := range errs {
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrConflict):
			default:
				t.Errorf("Unexpected claim error: %v", err)
			}
		}
		if winners != 1 {
			t.Errorf("Expected exactly one winning claim, got %d", winners)
		}
	})
}

func TestFailStaleAnalyses(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		stale, err := repo.CreateAnalysis(ctx, "stuck question", "")
		if err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}
		done, err := repo.CreateAnalysis(ctx, "finished question", "")
		if err != nil {
			t.Fatalf("CreateAnalysis failed: %v", err)
		}
		if err := repo.SetAnalysisStatus(ctx, done.ID, domain.StatusCompleted); err != nil {
			t.Fatalf("SetAnalysisStatus failed: %v", err)
		}

		// A generous threshold leaves recent rows alone.
		updated, err := repo.FailStaleAnalyses(ctx, time.Hour)
		if err != nil {
			t.Fatalf("FailStaleAnalyses failed: %v", err)
		}
		if updated != 0 {
			t.Errorf("Expected no sweeps with an hour threshold, got %d", updated)
		}

		// A threshold in the future catches every processing row, but only
		// processing rows.
		updated, err = repo.FailStaleAnalyses(ctx, -time.Minute)
		if err != nil {
			t.Fatalf("FailStaleAnalyses failed: %v", err)
		}
		if updated != 1 {
			t.Errorf("Expected 1 swept analysis, got %d", updated)
		}

		got, err := repo.GetAnalysis(ctx, stale.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if got.Status != domain.StatusFailed {
			t.Errorf("Expected failed status, got %q", got.Status)
		}
		got, err = repo.GetAnalysis(ctx, done.ID)
		if err != nil {
			t.Fatalf("GetAnalysis failed: %v", err)
		}
		if got.Status != domain.StatusCompleted {
			t.Errorf("Completed analysis should not be swept, got %q", got.Status)
		}
	})
}

func TestDailyUsageCounting(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "usage@example.com")
		date := "2025-03-01"

		count, err := repo.GetDailyUsage(ctx, user.ID, date)
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected 0 before any increment, got %d", count)
		}

		for i := 1; i <= 3; i++ {
			count, err = repo.IncrementDailyUsage(ctx, user.ID, date)
			if err != nil {
				t.Fatalf("IncrementDailyUsage failed: %v", err)
			}
			if count != i {
				t.Errorf("Expected count %d, got %d", i, count)
			}
		}

		// A different day gets its own counter.
		other, err := repo.GetDailyUsage(ctx, user.ID, "2025-03-02")
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if other != 0 {
			t.Errorf("Expected separate counter per day, got %d", other)
		}
	})
}

func TestConcurrentUsageIncrementsAreNotLost(t *testing.T) {
	withBackends(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		user := makeUser(t, repo, "race@example.com")
		date := "2025-03-01"

		const workers = 10
		var wg sync.WaitGroup
		errCh := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.IncrementDailyUsage(ctx, user.ID, date); err != nil {
					errCh <- err
				}
			}()
		}
		wg.Wait()
		close(errCh)
		for err := range errCh {
			t.Errorf("IncrementDailyUsage failed: %v", err)
		}

		count, err := repo.GetDailyUsage(ctx, user.ID, date)
		if err != nil {
			t.Fatalf("GetDailyUsage failed: %v", err)
		}
		if count != workers {
			t.Errorf("Expected %d after %d concurrent increments, got %d", workers, workers, count)
		}
	})
}
