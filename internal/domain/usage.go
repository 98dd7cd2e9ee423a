package domain

import (
	"time"
)

// DailyUsage is one (user, day) usage counter row. Created lazily on first
// increment of the day, never decremented.
type DailyUsage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UsageDate string    `json:"usage_date"` // YYYY-MM-DD, process-local time
	Count     int       `json:"query_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageState is the quota view returned to callers.
type UsageState struct {
	DailyLimit   int  `json:"daily_limit"` // -1 means unlimited
	CurrentUsage int  `json:"current_usage"`
	Remaining    int  `json:"remaining"` // -1 means unlimited
	Exceeded     bool `json:"is_exceeded"`
	Plan         Plan `json:"plan"`
}

// UsageDate formats t as a day-granularity usage key.
func UsageDate(t time.Time) string {
	return t.Format("2006-01-02")
}
