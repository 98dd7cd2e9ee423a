package api

import (
	"time"

	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/persona"
)

// guardianView is the persona display metadata echoed on every response.
type guardianView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar"`
	Personality string `json:"personality"`
	Perspective string `json:"perspective"`
}

// responseView is one persona response enriched with display metadata.
type responseView struct {
	Guardian  guardianView `json:"guardian"`
	Response  string       `json:"response"`
	Timestamp time.Time    `json:"timestamp"`
}

// analysisView is the full analysis payload returned to clients.
type analysisView struct {
	ID        string                 `json:"id"`
	Query     string                 `json:"query"`
	Responses []responseView         `json:"responses"`
	Summary   *domain.InsightSummary `json:"summary,omitempty"`
	Status    domain.AnalysisStatus  `json:"status"`
	OwnerID   string                 `json:"user_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func enrichResponses(responses []domain.AgentResponse) []responseView {
	views := make([]responseView, 0, len(responses))
	for _, r := range responses {
		view := responseView{
			Guardian:  guardianView{ID: r.PersonaID},
			Response:  r.Response,
			Timestamp: r.Timestamp,
		}
		if p, ok := persona.ByID(r.PersonaID); ok {
			view.Guardian = guardianView{
				ID:          p.ID,
				Name:        p.Name,
				Avatar:      p.Avatar,
				Personality: p.Personality,
				Perspective: p.Perspective,
			}
		}
		views = append(views, view)
	}
	return views
}

func toAnalysisView(a *domain.Analysis) analysisView {
	return analysisView{
		ID:        a.ID,
		Query:     a.Query,
		Responses: enrichResponses(a.Responses),
		Summary:   a.Summary,
		Status:    a.Status,
		OwnerID:   a.OwnerID,
		CreatedAt: a.CreatedAt,
	}
}
