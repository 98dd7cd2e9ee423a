package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/llm"
	"github.com/groundedhq/grounded/internal/persona"
)

const (
	// Synthesis favors consistency over creativity.
	synthesisTemperature = 0.3
	synthesisMaxTokens   = 800
)

// Synthesizer aggregates all persona responses into one structured summary.
type Synthesizer struct {
	gen    llm.Generator
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer on top of the given generator.
func NewSynthesizer(gen llm.Generator, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{gen: gen, logger: logger}
}

// Summarize produces an InsightSummary from the collected persona responses.
// It never fails outwardly: if the call errors or the output cannot be parsed,
// the documented default summary is returned instead.
func (s *Synthesizer) Summarize(ctx context.Context, responses []domain.AgentResponse, query string) *domain.InsightSummary {
	text, err := s.gen.Generate(ctx, llm.Request{
		Prompt:      buildSummaryPrompt(responses, query),
		MaxTokens:   synthesisMaxTokens,
		Temperature: synthesisTemperature,
	})
	if err != nil {
		s.logger.Warn("synthesis call failed, using default summary", "error", err)
		return DefaultSummary()
	}

	summary, err := parseSummary(text)
	if err != nil {
		s.logger.Warn("synthesis output unparsable, using default summary", "error", err)
		return DefaultSummary()
	}
	return summary
}

// DefaultSummary is the neutral placeholder returned when synthesis fails.
func DefaultSummary() *domain.InsightSummary {
	return &domain.InsightSummary{
		MainThemes:       []string{"Analysis pending"},
		Consensus:        "Unable to generate summary at this time",
		DivergentViews:   []string{},
		ActionItems:      []string{"Try asking your question again"},
		OverallSentiment: "Analytically Neutral",
		SentimentDetail: domain.SentimentDetail{
			Tone:       "Processing",
			Confidence: "low",
			Nuance:     "Analysis is still being processed",
		},
		GuardianScores: &domain.GuardianScores{
			Aspects:      []domain.AspectScore{},
			OverallScore: 5.0,
		},
	}
}

func buildSummaryPrompt(responses []domain.AgentResponse, query string) string {
	var combined strings.Builder
	for i, r := range responses {
		if i > 0 {
			combined.WriteString("\n\n")
		}
		name := r.PersonaID
		if p, ok := persona.ByID(r.PersonaID); ok {
			name = p.Name
		}
		combined.WriteString(name)
		combined.WriteString(": ")
		combined.WriteString(r.Response)
	}

	return fmt.Sprintf(`Based on these %d different perspectives on the query %q, create a comprehensive insight summary.

IMPORTANT: Respond in the same language as the original query %q. If the query is in Indonesian, respond in Indonesian. If it's in English, respond in English, etc.

%s

Please analyze and provide:
1. Main themes that emerged across responses
2. Areas of consensus among the guardians
3. Notable divergent viewpoints
4. Key action items or recommendations
5. Detailed sentiment analysis with precise descriptors
6. Guardian scoring analysis for key aspects

For the guardian scoring, analyze the responses and identify key aspects/options/ideas mentioned in the query, then score each based on guardian opinions:
- Score each aspect on a 1-10 scale based on guardian sentiment
- Count how many guardians support vs have concerns about each aspect
- List specific concerns raised by guardians
- Calculate an overall score

For sentiment analysis, provide a concise point-by-point breakdown based on guardian responses. Use precise descriptors like:
- "Cautiously Optimistic" - hopeful but with reservations
- "Constructively Critical" - pointing out issues while offering solutions
- "Enthusiastically Supportive" - strongly positive and encouraging
- "Analytically Neutral" - objective, data-driven assessment
- "Pragmatically Realistic" - balanced view acknowledging both pros and cons
- "Strategically Concerned" - worried but focused on solutions
- "Confidently Encouraging" - positive with strong conviction
- "Thoughtfully Balanced" - carefully weighing multiple factors
- "Cautiously Skeptical" - doubtful but open to evidence
- "Constructively Engaged" - actively involved in problem-solving

Format your response as JSON with the following structure:
{
  "mainThemes": ["theme1", "theme2", "theme3"],
  "consensus": "brief summary of what most guardians agreed on",
  "divergentViews": ["view1", "view2"],
  "actionItems": ["action1", "action2", "action3"],
  "overallSentiment": "precise sentiment descriptor (e.g., 'Cautiously Optimistic')",
  "sentimentDetails": {
    "tone": "brief description of the overall tone",
    "confidence": "level of certainty in the responses (high/medium/low)",
    "nuance": "key nuances or subtleties in the sentiment"
  },
  "guardianScores": {
    "aspects": [
      {
        "name": "aspect name (e.g., 'Feasibility', 'Cost-effectiveness', 'Risk level')",
        "score": 7.5,
        "supportCount": 6,
        "concerns": ["concern1", "concern2"]
      }
    ],
    "overallScore": 7.2
  }
}`, len(responses), query, query, combined.String())
}

// summaryPayload mirrors the JSON shape requested from the model.
type summaryPayload struct {
	MainThemes       []string `json:"mainThemes"`
	Consensus        string   `json:"consensus"`
	DivergentViews   []string `json:"divergentViews"`
	ActionItems      []string `json:"actionItems"`
	OverallSentiment string   `json:"overallSentiment"`
	SentimentDetails struct {
		Tone       string `json:"tone"`
		Confidence string `json:"confidence"`
		Nuance     string `json:"nuance"`
	} `json:"sentimentDetails"`
	GuardianScores *struct {
		Aspects []struct {
			Name         string   `json:"name"`
			Score        float64  `json:"score"`
			SupportCount int      `json:"supportCount"`
			Concerns     []string `json:"concerns"`
		} `json:"aspects"`
		OverallScore float64 `json:"overallScore"`
	} `json:"guardianScores"`
}

func parseSummary(text string) (*domain.InsightSummary, error) {
	raw := extractJSON(text)

	var payload summaryPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode summary json: %w", err)
	}
	if len(payload.MainThemes) == 0 && payload.Consensus == "" {
		return nil, fmt.Errorf("summary json missing required fields")
	}

	summary := &domain.InsightSummary{
		MainThemes:       payload.MainThemes,
		Consensus:        payload.Consensus,
		DivergentViews:   payload.DivergentViews,
		ActionItems:      payload.ActionItems,
		OverallSentiment: payload.OverallSentiment,
		SentimentDetail: domain.SentimentDetail{
			Tone:       payload.SentimentDetails.Tone,
			Confidence: normalizeConfidence(payload.SentimentDetails.Confidence),
			Nuance:     payload.SentimentDetails.Nuance,
		},
	}
	if summary.DivergentViews == nil {
		summary.DivergentViews = []string{}
	}
	if summary.ActionItems == nil {
		summary.ActionItems = []string{}
	}

	if payload.GuardianScores != nil {
		scores := &domain.GuardianScores{
			Aspects:      make([]domain.AspectScore, 0, len(payload.GuardianScores.Aspects)),
			OverallScore: clampScore(payload.GuardianScores.OverallScore),
		}
		for _, a := range payload.GuardianScores.Aspects {
			concerns := a.Concerns
			if concerns == nil {
				concerns = []string{}
			}
			supportCount := a.SupportCount
			if supportCount < 0 {
				supportCount = 0
			}
			scores.Aspects = append(scores.Aspects, domain.AspectScore{
				Name:         a.Name,
				Score:        clampScore(a.Score),
				SupportCount: supportCount,
				Concerns:     concerns,
			})
		}
		summary.GuardianScores = scores
	}

	return summary, nil
}

// extractJSON strips markdown code fences and any prose around the outermost
// JSON object. Models frequently wrap structured output despite instructions.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func normalizeConfidence(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
