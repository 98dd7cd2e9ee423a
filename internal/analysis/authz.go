package analysis

import (
	"github.com/groundedhq/grounded/internal/domain"
)

// CanRead decides whether requesterID may read the analysis. requesterID is
// empty for unauthenticated requesters.
//
// Owned analyses are readable only by their exact owner. Anonymous analyses
// are readable only by unauthenticated requesters: no session-to-analysis
// linkage exists, so an authenticated user is denied even analyses their own
// past anonymous session produced. Callers surface denial as NotFound so that
// private analyses are indistinguishable from missing ones.
func CanRead(a *domain.Analysis, requesterID string) bool {
	if a.IsOwned() {
		return requesterID == a.OwnerID
	}
	return requesterID == ""
}
