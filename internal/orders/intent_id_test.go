package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewIntentIDGeneratorValidation(t *testing.T) {
	if _, err := NewIntentIDGenerator(nil, "", nil, zerolog.Nop()); err == nil {
		t.Error("expected error for empty strategy code")
	}
	if _, err := NewIntentIDGenerator(nil, "AGENT", nil, zerolog.Nop()); err == nil {
		t.Error("expected error for code longer than 3 characters")
	}

	g, err := NewIntentIDGenerator(nil, "agt", nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.strategyCode != "AGT" {
		t.Errorf("strategy code = %q, want upper-cased AGT", g.strategyCode)
	}
}

func TestGenerateFallsBackWithoutRedis(t *testing.T) {
	g, err := NewIntentIDGenerator(nil, "AGT", nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	id, err := g.Generate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !IsFallbackID(id) {
		t.Errorf("ID %q should be marked as fallback without Redis", id)
	}
	if err := ValidateIntentID(id); err != nil {
		t.Errorf("fallback ID %q failed validation: %v", id, err)
	}
	if !strings.HasPrefix(id, "AGT-FB-") {
		t.Errorf("fallback ID %q should carry the AGT-FB- prefix", id)
	}
}

func TestFallbackIDsAreUnique(t *testing.T) {
	g, _ := NewIntentIDGenerator(nil, "AGT", nil, zerolog.Nop())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.GenerateFallback()
		if seen[id] {
			t.Fatalf("duplicate fallback ID %q", id)
		}
		seen[id] = true
	}
}

func TestValidateIntentID(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{"AGT-15JAN-00001", false},
		{"AGT-FB-a3f7c2e9", false},
		{"", true},
		{"AGT-00001", true},
		{"TOOLONG-15JAN-00001", true},
		{strings.Repeat("A", 40), true},
	}
	for _, tc := range cases {
		err := ValidateIntentID(tc.id)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateIntentID(%q) error = %v, wantErr %v", tc.id, err, tc.wantErr)
		}
	}
}

func TestGeneratorUsesInjectedClock(t *testing.T) {
	g, _ := NewIntentIDGenerator(nil, "AGT", time.UTC, zerolog.Nop())
	g.SetClock(func() time.Time {
		return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	})

	// without Redis the date is not embedded, but the clock must not panic
	// and fallback IDs still validate
	id, err := g.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateIntentID(id); err != nil {
		t.Errorf("ID %q failed validation: %v", id, err)
	}
}
