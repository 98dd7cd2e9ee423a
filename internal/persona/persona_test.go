package persona

import (
	"testing"
)

func TestRegistryHasNinePersonas(t *testing.T) {
	if Count() != 9 {
		t.Fatalf("Expected 9 personas, got %d", Count())
	}
	if len(All()) != Count() {
		t.Errorf("All() length %d does not match Count() %d", len(All()), Count())
	}
}

func TestRegistryIDsUniqueAndStable(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		if p.ID == "" {
			t.Errorf("Persona %q has empty id", p.Name)
		}
		if seen[p.ID] {
			t.Errorf("Duplicate persona id %q", p.ID)
		}
		seen[p.ID] = true

		if p.Name == "" || p.SystemPrompt == "" {
			t.Errorf("Persona %q missing display name or instruction profile", p.ID)
		}
	}

	// Registry order is part of the contract: responses are stored in it.
	wantFirst, wantLast := "optimist", "executor"
	if All()[0].ID != wantFirst {
		t.Errorf("Expected first persona %q, got %q", wantFirst, All()[0].ID)
	}
	if All()[Count()-1].ID != wantLast {
		t.Errorf("Expected last persona %q, got %q", wantLast, All()[Count()-1].ID)
	}
}

func TestByID(t *testing.T) {
	p, ok := ByID("skeptic")
	if !ok {
		t.Fatal("Expected to find skeptic persona")
	}
	if p.Name != "The Skeptic" {
		t.Errorf("Expected The Skeptic, got %q", p.Name)
	}

	if _, ok := ByID("nonexistent"); ok {
		t.Error("Expected lookup miss for unknown id")
	}
}
