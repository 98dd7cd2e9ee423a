package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		plan TEXT NOT NULL DEFAULT 'free',
		plan_expires_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		responses_json TEXT,
		summary_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner_id) WHERE owner_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status, updated_at);

	CREATE TABLE IF NOT EXISTS daily_usage (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		usage_date TEXT NOT NULL,
		query_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(user_id, usage_date)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, email, name, password_hash, plan, plan_expires_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var planExpires interface{}
	if user.PlanExpiresAt != nil {
		planExpires = user.PlanExpiresAt.Unix()
	}

	// Emails are stored lowercased so lookups are case-insensitive.
	_, err := s.db.ExecContext(ctx, query,
		user.ID, strings.ToLower(user.Email), user.Name, user.PasswordHash,
		string(user.Plan), planExpires,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		if shared.IsSQLiteUniqueError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var plan string
	var planExpires sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&plan, &planExpires, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Plan = domain.Plan(plan)
	if planExpires.Valid {
		ts := time.Unix(planExpires.Int64, 0)
		user.PlanExpiresAt = &ts
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, email, name, password_hash, plan, plan_expires_at, created_at, updated_at
		FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, name, password_hash, plan, plan_expires_at, created_at, updated_at
		FROM users WHERE email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

// SetPlan updates a user's plan and expiry.
func (s *SQLiteStore) SetPlan(ctx context.Context, userID string, plan domain.Plan, expiresAt time.Time) error {
	query := `UPDATE users SET plan = ?, plan_expires_at = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(plan), expiresAt.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession inserts an authenticated session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		session.Token, session.UserID, session.ExpiresAt.Unix(), session.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a non-expired session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	query := `SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ? AND expires_at > ?`
	row := s.db.QueryRowContext(ctx, query, token, time.Now().Unix())

	var session domain.Session
	var expiresAt, createdAt int64
	err := row.Scan(&session.Token, &session.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.ExpiresAt = time.Unix(expiresAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes sessions past their expiry.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// CreateAnalysis allocates an id and inserts a new analysis in processing status.
func (s *SQLiteStore) CreateAnalysis(ctx context.Context, query string, ownerID string) (*domain.Analysis, error) {
	now := time.Now()
	analysis := &domain.Analysis{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Query:     query,
		Status:    domain.StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var owner interface{}
	if ownerID != "" {
		owner = ownerID
	}

	insert := `
	INSERT INTO analyses (id, owner_id, query, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, insert,
		analysis.ID, owner, analysis.Query, string(analysis.Status),
		now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	return analysis, nil
}

// SetAnalysisStatus transitions an analysis's status.
func (s *SQLiteStore) SetAnalysisStatus(ctx context.Context, id string, status domain.AnalysisStatus) error {
	query := `UPDATE analyses SET status = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("update analysis status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResponses persists the ordered persona responses for an analysis.
func (s *SQLiteStore) SaveResponses(ctx context.Context, id string, responses []domain.AgentResponse) error {
	payload, err := json.Marshal(responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET responses_json = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("save responses: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSummary persists the insight summary for an analysis.
func (s *SQLiteStore) SaveSummary(ctx context.Context, id string, summary *domain.InsightSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET summary_json = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAnalysis(scan func(dest ...interface{}) error) (*domain.Analysis, error) {
	var analysis domain.Analysis
	var ownerID sql.NullString
	var status string
	var responsesJSON, summaryJSON sql.NullString
	var createdAt, updatedAt int64

	err := scan(
		&analysis.ID, &ownerID, &analysis.Query, &status,
		&responsesJSON, &summaryJSON, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis row: %w", err)
	}

	analysis.OwnerID = ownerID.String
	analysis.Status = domain.AnalysisStatus(status)
	analysis.CreatedAt = time.Unix(createdAt, 0)
	analysis.UpdatedAt = time.Unix(updatedAt, 0)

	if responsesJSON.Valid && responsesJSON.String != "" {
		if err := json.Unmarshal([]byte(responsesJSON.String), &analysis.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
	}
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary domain.InsightSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		analysis.Summary = &summary
	}
	return &analysis, nil
}

// GetAnalysis retrieves a full analysis by id.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `
		SELECT id, owner_id, query, status, responses_json, summary_json, created_at, updated_at
		FROM analyses WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	return scanAnalysis(row.Scan)
}

// ListAnalysesByOwner returns a user's analyses, newest first.
func (s *SQLiteStore) ListAnalysesByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.Analysis, error) {
	query := `
		SELECT id, owner_id, query, status, responses_json, summary_json, created_at, updated_at
		FROM analyses WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses by owner: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close analyses rows", "error", closeErr)
		}
	}()

	var analyses []*domain.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows.Scan)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return analyses, nil
}

const (
	busyMaxRetries = 3
	busyBaseDelay  = 50 * time.Millisecond
)

// withBusyRetry retries fn with exponential backoff on SQLITE_BUSY and
// "database is locked" errors. Write contention under WAL is transient.
func withBusyRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < busyMaxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if i < busyMaxRetries-1 {
			delay := busyBaseDelay * time.Duration(1<<i)
			slog.Debug("Database locked, retrying", "attempt", i+1, "delay", delay)
			time.Sleep(delay)
		}
	}
	return err
}

// ClaimAnalysis transfers an unowned analysis to userID. The conditional
// UPDATE succeeds only while owner_id is NULL, so concurrent claims on the
// same analysis resolve to exactly one winner.
func (s *SQLiteStore) ClaimAnalysis(ctx context.Context, id string, userID string) error {
	return withBusyRetry(ctx, func() error {
		return s.claimAnalysis(ctx, id, userID)
	})
}

func (s *SQLiteStore) claimAnalysis(ctx context.Context, id string, userID string) error {
	query := `UPDATE analyses SET owner_id = ?, updated_at = ? WHERE id = ? AND owner_id IS NULL`
	result, err := s.db.ExecContext(ctx, query, userID, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("claim analysis: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Distinguish a lost claim from a missing analysis.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM analyses WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check analysis existence: %w", err)
	}
	return ErrConflict
}

// FailStaleAnalyses marks long-running processing analyses as failed.
func (s *SQLiteStore) FailStaleAnalyses(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()
	query := `UPDATE analyses SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`
	result, err := s.db.ExecContext(ctx, query,
		string(domain.StatusFailed), time.Now().Unix(),
		string(domain.StatusProcessing), threshold)
	if err != nil {
		return 0, fmt.Errorf("fail stale analyses: %w", err)
	}
	return result.RowsAffected()
}

// GetDailyUsage returns the usage count for (user, day), defaulting to 0.
func (s *SQLiteStore) GetDailyUsage(ctx context.Context, userID string, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT query_count FROM daily_usage WHERE user_id = ? AND usage_date = ?`,
		userID, date).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query daily usage: %w", err)
	}
	return count, nil
}

// IncrementDailyUsage atomically increments the (user, day) counter via a
// single upsert, so concurrent increments for the same user never lose
// updates.
func (s *SQLiteStore) IncrementDailyUsage(ctx context.Context, userID string, date string) (int, error) {
	query := `
	INSERT INTO daily_usage (id, user_id, usage_date, query_count, created_at, updated_at)
	VALUES (?, ?, ?, 1, ?, ?)
	ON CONFLICT(user_id, usage_date) DO UPDATE SET
		query_count = query_count + 1,
		updated_at = excluded.updated_at
	RETURNING query_count`

	var count int
	err := withBusyRetry(ctx, func() error {
		now := time.Now().Unix()
		return s.db.QueryRowContext(ctx, query, uuid.NewString(), userID, date, now, now).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("increment daily usage: %w", err)
	}
	return count, nil
}
