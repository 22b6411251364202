package training

import (
	"reflect"
	"strings"
	"testing"
)

func TestDeriveGapsDeduplicates(t *testing.T) {
	// repeated_failure and Finance share no gaps, but low_confidence and
	// repeated_failure both carry "output verification"; verify via a
	// trigger/category pair and ordering.
	gaps := DeriveGaps(TriggerRepeatedFailure, "Finance")
	want := []string{
		"error recovery", "output verification", "risk assessment",
		"regulatory compliance", "transaction reconciliation",
	}
	if !reflect.DeepEqual(gaps, want) {
		t.Errorf("DeriveGaps = %v, want %v", gaps, want)
	}

	seen := make(map[string]bool)
	for _, g := range gaps {
		if seen[g] {
			t.Errorf("duplicate gap %q", g)
		}
		seen[g] = true
	}
}

func TestDeriveGapsUnknownCategory(t *testing.T) {
	gaps := DeriveGaps(TriggerLowConfidence, "Astrology")
	want := []string{"domain fundamentals", "output verification"}
	if !reflect.DeepEqual(gaps, want) {
		t.Errorf("DeriveGaps = %v, want %v", gaps, want)
	}
}

func TestDeriveObjectivesCapsGaps(t *testing.T) {
	gaps := []string{"a", "b", "c", "d", "e", "f", "g"}
	objectives := DeriveObjectives(gaps)

	if len(objectives) != maxGapObjectives+len(baselineObjectives) {
		t.Fatalf("got %d objectives, want %d", len(objectives), maxGapObjectives+len(baselineObjectives))
	}
	for i, o := range objectives[:maxGapObjectives] {
		if !strings.HasPrefix(o, "close capability gap: ") {
			t.Errorf("objective %d missing gap prefix: %q", i, o)
		}
	}
	// Baseline objectives always close the list.
	tail := objectives[len(objectives)-len(baselineObjectives):]
	if !reflect.DeepEqual(tail, baselineObjectives) {
		t.Errorf("tail = %v, want baseline objectives", tail)
	}
}

func TestSelectScenario(t *testing.T) {
	if s := SelectScenario("Support"); !strings.Contains(s, "ticket triage") {
		t.Errorf("unexpected support scenario: %q", s)
	}
	if s := SelectScenario("Unknown"); s != defaultScenario {
		t.Errorf("unknown category should fall back to default, got %q", s)
	}
}

func TestBoostFor(t *testing.T) {
	tests := []struct {
		performance, want float64
	}{
		{0.0, 0.05},
		{0.29, 0.05},
		{0.3, 0.10},
		{0.49, 0.10},
		{0.5, 0.15},
		{0.69, 0.15},
		{0.7, 0.20},
		{1.0, 0.20},
	}
	for _, tt := range tests {
		if got := BoostFor(tt.performance); got != tt.want {
			t.Errorf("BoostFor(%v) = %v, want %v", tt.performance, got, tt.want)
		}
	}
}

func TestOutcomeValidate(t *testing.T) {
	o := Outcome{PerformanceScore: 0.5}
	if err := o.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	o = Outcome{PerformanceScore: 1.1}
	if err := o.Validate(); err == nil {
		t.Error("expected error for score above 1")
	}
	o = Outcome{PerformanceScore: -0.1}
	if err := o.Validate(); err == nil {
		t.Error("expected error for negative score")
	}
}
