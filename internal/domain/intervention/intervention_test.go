package intervention

import "testing"

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role, min Role
		want      bool
	}{
		{RoleAdmin, RoleTeamLead, true},
		{RoleTeamLead, RoleTeamLead, true},
		{RoleOperator, RoleTeamLead, false},
		{Role("janitor"), RoleOperator, false},
		{RoleAdmin, RoleAdmin, true},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestResolved(t *testing.T) {
	a := Action{Status: StatusPending}
	if a.Resolved() {
		t.Error("pending action should not be resolved")
	}
	for _, st := range []Status{StatusApproved, StatusRejected} {
		a.Status = st
		if !a.Resolved() {
			t.Errorf("%s action should be resolved", st)
		}
	}
}

func TestValidateRejection(t *testing.T) {
	if err := ValidateRejection(""); err == nil {
		t.Error("empty reason should fail")
	}
	if err := ValidateRejection("insufficient evidence"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
