package analysis

import (
	"testing"

	"github.com/groundedhq/grounded/internal/domain"
)

func TestCanRead(t *testing.T) {
	tests := []struct {
		name        string
		ownerID     string
		requesterID string
		want        bool
	}{
		{"owner reads own analysis", "user-1", "user-1", true},
		{"other user denied", "user-1", "user-2", false},
		{"anonymous denied owned analysis", "user-1", "", false},
		{"anonymous reads anonymous analysis", "", "", true},
		{"authenticated user denied anonymous analysis", "", "user-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &domain.Analysis{ID: "a-1", OwnerID: tt.ownerID}
			if got := CanRead(a, tt.requesterID); got != tt.want {
				t.Errorf("CanRead(owner=%q, requester=%q) = %v, want %v", tt.ownerID, tt.requesterID, got, tt.want)
			}
		})
	}
}
