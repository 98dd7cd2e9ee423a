package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/store"
)

func newTestTracker(t *testing.T) (*Tracker, *store.MemoryStore) {
	t.Helper()
	repo := store.NewMemory()
	return NewTracker(repo), repo
}

func seedUser(t *testing.T, repo *store.MemoryStore, id string, plan domain.Plan, expiresAt *time.Time) {
	t.Helper()
	now := time.Now()
	err := repo.CreateUser(context.Background(), &domain.User{
		ID:            id,
		Email:         id + "@example.com",
		Name:          "Test User",
		PasswordHash:  "x",
		Plan:          plan,
		PlanExpiresAt: expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
}

func TestCheckFreshUserHasFullQuota(t *testing.T) {
	tracker, repo := newTestTracker(t)
	seedUser(t, repo, "user-1", domain.PlanFree, nil)

	state, err := tracker.Check(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if state.DailyLimit != domain.FreeDailyLimit {
		t.Errorf("Expected daily limit %d, got %d", domain.FreeDailyLimit, state.DailyLimit)
	}
	if state.CurrentUsage != 0 || state.Remaining != domain.FreeDailyLimit {
		t.Errorf("Expected untouched quota, got usage=%d remaining=%d", state.CurrentUsage, state.Remaining)
	}
	if state.Exceeded {
		t.Error("Fresh user should not be exceeded")
	}
}

func TestIncrementExhaustsFreeQuota(t *testing.T) {
	tracker, repo := newTestTracker(t)
	seedUser(t, repo, "user-1", domain.PlanFree, nil)

	ctx := context.Background()
	var state *domain.UsageState
	var err error
	for i := 0; i < domain.FreeDailyLimit; i++ {
		state, err = tracker.Increment(ctx, "user-1")
		if err != nil {
			t.Fatalf("Increment %d failed: %v", i+1, err)
		}
	}

	if state.CurrentUsage != domain.FreeDailyLimit {
		t.Errorf("Expected usage %d, got %d", domain.FreeDailyLimit, state.CurrentUsage)
	}
	if state.Remaining != 0 {
		t.Errorf("Expected 0 remaining, got %d", state.Remaining)
	}
	if !state.Exceeded {
		t.Error("Expected quota exceeded at the ceiling")
	}

	// The counter keeps recording past the ceiling.
	state, err = tracker.Increment(ctx, "user-1")
	if err != nil {
		t.Fatalf("Increment past ceiling failed: %v", err)
	}
	if state.CurrentUsage != domain.FreeDailyLimit+1 {
		t.Errorf("Expected usage %d, got %d", domain.FreeDailyLimit+1, state.CurrentUsage)
	}
	if state.Remaining != 0 {
		t.Errorf("Remaining should floor at 0, got %d", state.Remaining)
	}
}

func TestProPlanIsUnlimited(t *testing.T) {
	tracker, repo := newTestTracker(t)
	expiry := time.Now().Add(24 * time.Hour)
	seedUser(t, repo, "pro-1", domain.PlanPro, &expiry)

	ctx := context.Background()
	for i := 0; i < domain.FreeDailyLimit+5; i++ {
		if _, err := tracker.Increment(ctx, "pro-1"); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	state, err := tracker.Check(ctx, "pro-1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if state.Exceeded {
		t.Error("Pro plan should never be exceeded")
	}
	if state.DailyLimit != domain.UnlimitedLimit || state.Remaining != domain.UnlimitedLimit {
		t.Errorf("Expected unlimited sentinel, got limit=%d remaining=%d", state.DailyLimit, state.Remaining)
	}
	if state.Plan != domain.PlanPro {
		t.Errorf("Expected pro plan, got %q", state.Plan)
	}
}

func TestExpiredProFallsBackToFree(t *testing.T) {
	tracker, repo := newTestTracker(t)
	expiry := time.Now().Add(-time.Hour)
	seedUser(t, repo, "lapsed-1", domain.PlanPro, &expiry)

	state, err := tracker.Check(context.Background(), "lapsed-1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if state.Plan != domain.PlanFree {
		t.Errorf("Expected lapsed pro to read as free, got %q", state.Plan)
	}
	if state.DailyLimit != domain.FreeDailyLimit {
		t.Errorf("Expected free daily limit, got %d", state.DailyLimit)
	}

	// The stored plan itself is untouched.
	user, err := repo.GetUser(context.Background(), "lapsed-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Plan != domain.PlanPro {
		t.Errorf("Stored plan should remain pro, got %q", user.Plan)
	}
}

func TestCheckUnknownUser(t *testing.T) {
	tracker, _ := newTestTracker(t)

	_, err := tracker.Check(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpgradeGrantsOneMonthOfPro(t *testing.T) {
	tracker, repo := newTestTracker(t)
	seedUser(t, repo, "user-1", domain.PlanFree, nil)

	before := time.Now()
	if err := tracker.Upgrade(context.Background(), "user-1"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	user, err := repo.GetUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Plan != domain.PlanPro {
		t.Errorf("Expected pro plan after upgrade, got %q", user.Plan)
	}
	if user.PlanExpiresAt == nil {
		t.Fatal("Expected a plan expiry after upgrade")
	}
	want := before.AddDate(0, 1, 0)
	if user.PlanExpiresAt.Before(want.Add(-time.Minute)) || user.PlanExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("Expected expiry about one month out, got %v", user.PlanExpiresAt)
	}
}

func TestUsageResetsAcrossDays(t *testing.T) {
	tracker, repo := newTestTracker(t)
	seedUser(t, repo, "user-1", domain.PlanFree, nil)

	day := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return day }

	ctx := context.Background()
	for i := 0; i < domain.FreeDailyLimit; i++ {
		if _, err := tracker.Increment(ctx, "user-1"); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	tracker.now = func() time.Time { return day.AddDate(0, 0, 1) }
	state, err := tracker.Check(ctx, "user-1")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if state.CurrentUsage != 0 || state.Exceeded {
		t.Errorf("Expected fresh quota the next day, got usage=%d exceeded=%v", state.CurrentUsage, state.Exceeded)
	}
}
