package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groundedhq/grounded/internal/domain"
)

// MemoryStore implements Repository entirely in process memory. It is the
// fallback backend when the durable database is unavailable; everything it
// holds is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User    // by id
	emails   map[string]string          // lowercased email -> user id
	sessions map[string]*domain.Session // by token
	analyses map[string]*domain.Analysis
	usage    map[string]*domain.DailyUsage // userID + "|" + date
}

// NewMemory creates an empty in-process repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*domain.User),
		emails:   make(map[string]string),
		sessions: make(map[string]*domain.Session),
		analyses: make(map[string]*domain.Analysis),
		usage:    make(map[string]*domain.DailyUsage),
	}
}

// Ping always succeeds for the memory backend.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryStore) Close() error {
	return nil
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.PlanExpiresAt != nil {
		ts := *u.PlanExpiresAt
		cp.PlanExpiresAt = &ts
	}
	return &cp
}

func cloneAnalysis(a *domain.Analysis) *domain.Analysis {
	cp := *a
	if a.Responses != nil {
		cp.Responses = make([]domain.AgentResponse, len(a.Responses))
		copy(cp.Responses, a.Responses)
	}
	if a.Summary != nil {
		summary := *a.Summary
		if a.Summary.GuardianScores != nil {
			scores := *a.Summary.GuardianScores
			scores.Aspects = make([]domain.AspectScore, len(a.Summary.GuardianScores.Aspects))
			copy(scores.Aspects, a.Summary.GuardianScores.Aspects)
			summary.GuardianScores = &scores
		}
		cp.Summary = &summary
	}
	return &cp
}

// CreateUser inserts a new user record.
func (m *MemoryStore) CreateUser(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, taken := m.emails[email]; taken {
		return ErrEmailTaken
	}
	m.users[user.ID] = cloneUser(user)
	m.emails[email] = user.ID
	return nil
}

// GetUser retrieves a user by id.
func (m *MemoryStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

// GetUserByEmail retrieves a user by email.
func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(m.users[id]), nil
}

// SetPlan updates a user's plan and expiry.
func (m *MemoryStore) SetPlan(ctx context.Context, userID string, plan domain.Plan, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.Plan = plan
	user.PlanExpiresAt = &expiresAt
	user.UpdatedAt = time.Now()
	return nil
}

// CreateSession inserts an authenticated session.
func (m *MemoryStore) CreateSession(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	m.sessions[session.Token] = &cp
	return nil
}

// GetSession retrieves a non-expired session by token.
func (m *MemoryStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[token]
	if !ok || session.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

// DeleteSession removes a session.
func (m *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// CleanupExpiredSessions removes sessions past their expiry.
func (m *MemoryStore) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var removed int64
	for token, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// CreateAnalysis allocates an id and inserts a new analysis in processing status.
func (m *MemoryStore) CreateAnalysis(ctx context.Context, query string, ownerID string) (*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	analysis := &domain.Analysis{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Query:     query,
		Status:    domain.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.analyses[analysis.ID] = analysis
	return cloneAnalysis(analysis), nil
}

// SetAnalysisStatus transitions an analysis's status.
func (m *MemoryStore) SetAnalysisStatus(ctx context.Context, id string, status domain.AnalysisStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return ErrNotFound
	}
	analysis.Status = status
	analysis.UpdatedAt = time.Now()
	return nil
}

// SaveResponses persists the ordered persona responses for an analysis.
func (m *MemoryStore) SaveResponses(ctx context.Context, id string, responses []domain.AgentResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return ErrNotFound
	}
	analysis.Responses = make([]domain.AgentResponse, len(responses))
	copy(analysis.Responses, responses)
	analysis.UpdatedAt = time.Now()
	return nil
}

// SaveSummary persists the insight summary for an analysis.
func (m *MemoryStore) SaveSummary(ctx context.Context, id string, summary *domain.InsightSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return ErrNotFound
	}
	analysis.Summary = summary
	analysis.UpdatedAt = time.Now()
	return nil
}

// GetAnalysis retrieves a full analysis by id.
func (m *MemoryStore) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAnalysis(analysis), nil
}

// ListAnalysesByOwner returns a user's analyses, newest first.
func (m *MemoryStore) ListAnalysesByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var analyses []*domain.Analysis
	for _, analysis := range m.analyses {
		if analysis.OwnerID == ownerID {
			analyses = append(analyses, cloneAnalysis(analysis))
		}
	}
	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt)
	})
	if limit > 0 && len(analyses) > limit {
		analyses = analyses[:limit]
	}
	return analyses, nil
}

// ClaimAnalysis transfers an unowned analysis to userID. The check-and-set
// happens under the store lock, so concurrent claims resolve to one winner.
func (m *MemoryStore) ClaimAnalysis(ctx context.Context, id string, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	analysis, ok := m.analyses[id]
	if !ok {
		return ErrNotFound
	}
	if analysis.OwnerID != "" {
		return ErrConflict
	}
	analysis.OwnerID = userID
	analysis.UpdatedAt = time.Now()
	return nil
}

// FailStaleAnalyses marks long-running processing analyses as failed.
func (m *MemoryStore) FailStaleAnalyses(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := time.Now().Add(-olderThan)
	var updated int64
	for _, analysis := range m.analyses {
		if analysis.Status == domain.StatusProcessing && analysis.UpdatedAt.Before(threshold) {
			analysis.Status = domain.StatusFailed
			analysis.UpdatedAt = time.Now()
			updated++
		}
	}
	return updated, nil
}

func usageKey(userID, date string) string {
	return userID + "|" + date
}

// GetDailyUsage returns the usage count for (user, day), defaulting to 0.
func (m *MemoryStore) GetDailyUsage(ctx context.Context, userID string, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if row, ok := m.usage[usageKey(userID, date)]; ok {
		return row.Count, nil
	}
	return 0, nil
}

// IncrementDailyUsage increments the (user, day) counter under the store
// lock, creating it at 1 if absent.
func (m *MemoryStore) IncrementDailyUsage(ctx context.Context, userID string, date string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := usageKey(userID, date)
	row, ok := m.usage[key]
	if !ok {
		now := time.Now()
		row = &domain.DailyUsage{
			ID:        uuid.NewString(),
			UserID:    userID,
			UsageDate: date,
			CreatedAt: now,
		}
		m.usage[key] = row
	}
	row.Count++
	row.UpdatedAt = time.Now()
	return row.Count, nil
}

// Ensure both backends satisfy the contract.
var (
	_ Repository = (*SQLiteStore)(nil)
	_ Repository = (*MemoryStore)(nil)
)
