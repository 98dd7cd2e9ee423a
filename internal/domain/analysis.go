// Package domain contains core domain types for the Grounded application.
package domain

import (
	"time"
)

// AnalysisStatus tracks the lifecycle of an analysis record.
type AnalysisStatus string

const (
	StatusPending    AnalysisStatus = "pending"
	StatusProcessing AnalysisStatus = "processing"
	StatusCompleted  AnalysisStatus = "completed"
	StatusFailed     AnalysisStatus = "failed"
)

// AgentResponse is one persona's answer to the user query.
// Created once per pipeline run per persona and immutable afterwards.
type AgentResponse struct {
	PersonaID string    `json:"persona_id"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// SentimentDetail breaks the overall sentiment down.
type SentimentDetail struct {
	Tone       string `json:"tone"`
	Confidence string `json:"confidence"` // high, medium, low
	Nuance     string `json:"nuance"`
}

// AspectScore scores one aspect of the query based on persona opinions.
type AspectScore struct {
	Name         string   `json:"name"`
	Score        float64  `json:"score"` // 0-10
	SupportCount int      `json:"support_count"`
	Concerns     []string `json:"concerns"`
}

// GuardianScores aggregates per-aspect scoring across personas.
type GuardianScores struct {
	Aspects      []AspectScore `json:"aspects"`
	OverallScore float64       `json:"overall_score"` // 0-10
}

// InsightSummary is the structured cross-persona summary produced by the
// synthesis stage. Nil on an analysis means synthesis never completed.
type InsightSummary struct {
	MainThemes       []string        `json:"main_themes"`
	Consensus        string          `json:"consensus"`
	DivergentViews   []string        `json:"divergent_views"`
	ActionItems      []string        `json:"action_items"`
	OverallSentiment string          `json:"overall_sentiment"`
	SentimentDetail  SentimentDetail `json:"sentiment_detail"`
	GuardianScores   *GuardianScores `json:"guardian_scores,omitempty"`
}

// Analysis is one pipeline run: the query, every persona's response, and the
// synthesized summary. OwnerID is empty for anonymous runs.
type Analysis struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Query     string          `json:"query"`
	Status    AnalysisStatus  `json:"status"`
	Responses []AgentResponse `json:"responses"`
	Summary   *InsightSummary `json:"summary,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsOwned reports whether the analysis has been claimed by a user.
func (a *Analysis) IsOwned() bool {
	return a.OwnerID != ""
}
