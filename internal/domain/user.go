package domain

import (
	"time"
)

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// FreeDailyLimit is the number of analyses a free-plan user may run per day.
const FreeDailyLimit = 10

// UnlimitedLimit is the sentinel daily limit for the pro plan.
const UnlimitedLimit = -1

// User represents a registered account.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"-"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EffectivePlan resolves the plan as of now. A pro plan with an expiry in the
// past is treated as free without mutating the stored plan.
func (u *User) EffectivePlan(now time.Time) Plan {
	if u.Plan == PlanPro {
		if u.PlanExpiresAt == nil || u.PlanExpiresAt.After(now) {
			return PlanPro
		}
		return PlanFree
	}
	return PlanFree
}

// Session is an authenticated browser session.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
