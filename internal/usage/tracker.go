// Package usage enforces per-user daily analysis quotas.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/store"
)

// proDuration is how long an upgrade extends the pro plan: one calendar month
// from the moment of upgrade, independent of any prior expiry.
const proDuration = 1

// Tracker reads and updates per-user daily usage against plan-dependent
// ceilings. The free ceiling is domain.FreeDailyLimit; pro is unlimited.
type Tracker struct {
	repo store.Repository
	now  func() time.Time
}

// NewTracker creates a Tracker over the given repository.
func NewTracker(repo store.Repository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// Check returns the user's current usage state for today. The effective plan
// is resolved at read time: an expired pro plan counts as free without
// mutating the stored plan. Returns store.ErrNotFound for unknown users.
func (t *Tracker) Check(ctx context.Context, userID string) (*domain.UsageState, error) {
	user, err := t.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := t.now()
	count, err := t.repo.GetDailyUsage(ctx, userID, domain.UsageDate(now))
	if err != nil {
		return nil, fmt.Errorf("get daily usage: %w", err)
	}

	return buildState(user.EffectivePlan(now), count), nil
}

// Increment atomically bumps today's counter and returns the fresh usage
// state. It does not enforce the ceiling; callers check before running.
func (t *Tracker) Increment(ctx context.Context, userID string) (*domain.UsageState, error) {
	user, err := t.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	now := t.now()
	count, err := t.repo.IncrementDailyUsage(ctx, userID, domain.UsageDate(now))
	if err != nil {
		return nil, fmt.Errorf("increment daily usage: %w", err)
	}

	return buildState(user.EffectivePlan(now), count), nil
}

// Upgrade sets the user's plan to pro with an expiry one month out. Prior
// expiries do not stack.
func (t *Tracker) Upgrade(ctx context.Context, userID string) error {
	expiresAt := t.now().AddDate(0, proDuration, 0)
	if err := t.repo.SetPlan(ctx, userID, domain.PlanPro, expiresAt); err != nil {
		return fmt.Errorf("set plan: %w", err)
	}
	return nil
}

func buildState(plan domain.Plan, count int) *domain.UsageState {
	if plan == domain.PlanPro {
		return &domain.UsageState{
			DailyLimit:   domain.UnlimitedLimit,
			CurrentUsage: count,
			Remaining:    domain.UnlimitedLimit,
			Exceeded:     false,
			Plan:         domain.PlanPro,
		}
	}

	remaining := domain.FreeDailyLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return &domain.UsageState{
		DailyLimit:   domain.FreeDailyLimit,
		CurrentUsage: count,
		Remaining:    remaining,
		Exceeded:     count >= domain.FreeDailyLimit,
		Plan:         domain.PlanFree,
	}
}
