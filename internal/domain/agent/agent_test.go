package agent

import "testing"

func TestTierRankOrdering(t *testing.T) {
	tiers := []Tier{TierStudent, TierIntern, TierSupervised, TierAutonomous}
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].Rank() >= tiers[i].Rank() {
			t.Errorf("expected %s < %s in rank", tiers[i-1], tiers[i])
		}
	}
	if Tier("manager").Rank() != -1 {
		t.Errorf("unknown tier should rank -1, got %d", Tier("manager").Rank())
	}
}

func TestTierNext(t *testing.T) {
	tests := []struct {
		from, want Tier
	}{
		{TierStudent, TierIntern},
		{TierIntern, TierSupervised},
		{TierSupervised, TierAutonomous},
		{TierAutonomous, TierAutonomous},
	}
	for _, tt := range tests {
		if got := tt.from.Next(); got != tt.want {
			t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestParseTier(t *testing.T) {
	if _, err := ParseTier("supervised"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseTier("grandmaster"); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestGateFor(t *testing.T) {
	g, ok := GateFor(TierStudent)
	if !ok {
		t.Fatal("student should have a gate")
	}
	if g.MinScore != 0.5 || g.MinExecutions != 50 || g.MinSuccessRate != 0.7 {
		t.Errorf("unexpected student gate: %+v", g)
	}
	if g.RequireAdmin {
		t.Error("student gate should not require admin")
	}

	g, ok = GateFor(TierSupervised)
	if !ok {
		t.Fatal("supervised should have a gate")
	}
	if !g.RequireAdmin {
		t.Error("supervised gate should require admin")
	}

	if _, ok := GateFor(TierAutonomous); ok {
		t.Error("top tier should have no gate")
	}
}

func TestEligibleForPromotion(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want bool
	}{
		{
			name: "meets student gate",
			rec:  Record{Tier: TierStudent, ConfidenceScore: 0.55, ExecutionCount: 60, SuccessCount: 50},
			want: true,
		},
		{
			name: "score too low",
			rec:  Record{Tier: TierStudent, ConfidenceScore: 0.49, ExecutionCount: 60, SuccessCount: 50},
			want: false,
		},
		{
			name: "too few executions",
			rec:  Record{Tier: TierStudent, ConfidenceScore: 0.6, ExecutionCount: 49, SuccessCount: 49},
			want: false,
		},
		{
			name: "success rate too low",
			rec:  Record{Tier: TierStudent, ConfidenceScore: 0.6, ExecutionCount: 100, SuccessCount: 60},
			want: false,
		},
		{
			name: "top tier never eligible",
			rec:  Record{Tier: TierAutonomous, ConfidenceScore: 1, ExecutionCount: 1000, SuccessCount: 1000},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.EligibleForPromotion(); got != tt.want {
				t.Errorf("EligibleForPromotion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	if got := ClampScore(1.3); got != 1 {
		t.Errorf("ClampScore(1.3) = %v, want 1", got)
	}
	if got := ClampScore(-0.2); got != 0 {
		t.Errorf("ClampScore(-0.2) = %v, want 0", got)
	}
	if got := ClampScore(0.42); got != 0.42 {
		t.Errorf("ClampScore(0.42) = %v, want 0.42", got)
	}
}

func TestSuccessRate(t *testing.T) {
	r := Record{}
	if r.SuccessRate() != 0 {
		t.Error("zero executions should yield rate 0")
	}
	r = Record{ExecutionCount: 4, SuccessCount: 3}
	if r.SuccessRate() != 0.75 {
		t.Errorf("SuccessRate() = %v, want 0.75", r.SuccessRate())
	}
}
