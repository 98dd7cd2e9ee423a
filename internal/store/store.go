// Package store provides data persistence interfaces and implementations.
//
// Two backends implement the same Repository contract: a durable SQLite
// backend and an in-process memory backend. Which one a process uses is
// decided once at startup; there is no synchronization or migration between
// them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/groundedhq/grounded/internal/domain"
)

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a conditional update lost: the record exists but
	// is not in the state the operation requires (e.g. claiming an analysis
	// that already has an owner).
	ErrConflict = errors.New("conflict")

	// ErrEmailTaken indicates a registration attempt with an email that is
	// already in use.
	ErrEmailTaken = errors.New("email already registered")
)

// Repository defines the persistence contract shared by both backends.
type Repository interface {
	// CreateUser inserts a new user. Returns ErrEmailTaken if the email is
	// already registered.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by id. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetPlan updates a user's plan and expiry. Returns ErrNotFound if the
	// user does not exist.
	SetPlan(ctx context.Context, userID string, plan domain.Plan, expiresAt time.Time) error

	// CreateSession inserts an authenticated session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by token. Returns ErrNotFound for
	// missing or expired sessions.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	// DeleteSession removes a session. Deleting a missing session is a no-op.
	DeleteSession(ctx context.Context, token string) error

	// CleanupExpiredSessions removes sessions past their expiry.
	CleanupExpiredSessions(ctx context.Context) (int64, error)

	// CreateAnalysis allocates an id and inserts a new analysis in
	// processing status. ownerID may be empty for anonymous runs.
	CreateAnalysis(ctx context.Context, query string, ownerID string) (*domain.Analysis, error)

	// SetAnalysisStatus transitions an analysis's status.
	SetAnalysisStatus(ctx context.Context, id string, status domain.AnalysisStatus) error

	// SaveResponses persists the ordered persona responses for an analysis.
	// Called exactly once per run.
	SaveResponses(ctx context.Context, id string, responses []domain.AgentResponse) error

	// SaveSummary persists the insight summary for an analysis. Called
	// exactly once per run.
	SaveSummary(ctx context.Context, id string, summary *domain.InsightSummary) error

	// GetAnalysis retrieves a full analysis by id. Returns ErrNotFound if
	// absent.
	GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error)

	// ListAnalysesByOwner returns a user's analyses, newest first.
	ListAnalysesByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Analysis, error)

	// ClaimAnalysis transfers an unowned analysis to userID. The check-and-set
	// is atomic: concurrent claims on the same analysis resolve to exactly
	// one winner. Returns ErrNotFound if the analysis does not exist, or
	// ErrConflict if it already has an owner.
	ClaimAnalysis(ctx context.Context, id string, userID string) error

	// FailStaleAnalyses marks analyses stuck in processing status for longer
	// than olderThan as failed, returning how many were updated.
	FailStaleAnalyses(ctx context.Context, olderThan time.Duration) (int64, error)

	// GetDailyUsage returns the usage count for (user, day), defaulting to 0
	// when no counter row exists yet.
	GetDailyUsage(ctx context.Context, userID string, date string) (int, error)

	// IncrementDailyUsage atomically increments the (user, day) counter,
	// creating it at 1 if absent, and returns the new count. Safe under
	// concurrent calls for the same user and day.
	IncrementDailyUsage(ctx context.Context, userID string, date string) (int, error)

	// Ping verifies backend availability.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
