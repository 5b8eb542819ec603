package ferry

import "testing"

func TestFailureState_RetrievedResets(t *testing.T) {
	t.Parallel()

	s := FailureState{Consecutive: 4}
	esc := s.advance(OutcomeRetrieved)

	if esc.Remediate || esc.Cooldown {
		t.Errorf("advance(retrieved) escalated: %+v", esc)
	}
	if s.Consecutive != 0 {
		t.Errorf("Consecutive = %d, want 0", s.Consecutive)
	}
	if !s.SucceededOnce {
		t.Error("SucceededOnce not set after a retrieval")
	}
}

func TestFailureState_EmptyResets(t *testing.T) {
	t.Parallel()

	s := FailureState{Consecutive: 4, SucceededOnce: true}
	esc := s.advance(OutcomeEmptyOrEligible)

	if esc.Remediate || esc.Cooldown {
		t.Errorf("advance(empty) escalated: %+v", esc)
	}
	if s.Consecutive != 0 {
		t.Errorf("Consecutive = %d, want 0", s.Consecutive)
	}
}

func TestFailureState_ForeignItemKeepsCount(t *testing.T) {
	t.Parallel()

	s := FailureState{Consecutive: 2}
	esc := s.advance(OutcomeForeignItem)

	if esc.Remediate || esc.Cooldown {
		t.Errorf("advance(foreign) escalated: %+v", esc)
	}
	if s.Consecutive != 2 {
		t.Errorf("Consecutive = %d, want 2", s.Consecutive)
	}
	if s.SucceededOnce {
		t.Error("SucceededOnce set by a foreign item")
	}
}

func TestFailureState_RemediateAtThree(t *testing.T) {
	t.Parallel()

	var s FailureState
	for i := 1; i <= 2; i++ {
		if esc := s.advance(OutcomeTransferFailed); esc.Remediate || esc.Cooldown {
			t.Fatalf("failure %d escalated early: %+v", i, esc)
		}
	}

	esc := s.advance(OutcomeTransferFailed)
	if !esc.Remediate {
		t.Error("third failure did not remediate")
	}
	if esc.Cooldown {
		t.Error("third failure tripped the cooldown")
	}
	if s.Consecutive != 3 {
		t.Errorf("Consecutive = %d, want 3", s.Consecutive)
	}
}

func TestFailureState_CooldownAtFive(t *testing.T) {
	t.Parallel()

	s := FailureState{Consecutive: 4}
	esc := s.advance(OutcomeRetrieveFailed)

	if esc.Remediate {
		t.Error("fifth failure remediated; 5 is not a multiple of 3")
	}
	if !esc.Cooldown {
		t.Fatal("fifth failure did not trip the cooldown")
	}
	if esc.Failures != 5 {
		t.Errorf("Escalation.Failures = %d, want 5", esc.Failures)
	}
	if s.Consecutive != 0 {
		t.Errorf("Consecutive = %d after cooldown, want 0", s.Consecutive)
	}
}

func TestFailureState_LongRun(t *testing.T) {
	t.Parallel()

	var s FailureState
	var remediations, cooldowns []int
	for i := 1; i <= 10; i++ {
		esc := s.advance(OutcomeTransferFailed)
		if esc.Remediate {
			remediations = append(remediations, i)
		}
		if esc.Cooldown {
			cooldowns = append(cooldowns, i)
		}
	}

	// The counter resets at every cooldown, so the pattern repeats
	// with period 5.
	wantRemediations := []int{3, 8}
	wantCooldowns := []int{5, 10}
	if !equalInts(remediations, wantRemediations) {
		t.Errorf("remediations at %v, want %v", remediations, wantRemediations)
	}
	if !equalInts(cooldowns, wantCooldowns) {
		t.Errorf("cooldowns at %v, want %v", cooldowns, wantCooldowns)
	}
	if s.Consecutive != 0 {
		t.Errorf("Consecutive = %d after final cooldown, want 0", s.Consecutive)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		outcome Outcome
		want    string
	}{
		{OutcomeMoved, "moved"},
		{OutcomeRetrieved, "retrieved"},
		{OutcomeEmptyOrEligible, "empty-or-eligible"},
		{OutcomeTransferFailed, "transfer-failed"},
		{OutcomeRetrieveFailed, "retrieve-failed"},
		{OutcomeForeignItem, "foreign-item"},
		{Outcome(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(tt.outcome), got, tt.want)
		}
	}
}

func TestOutcome_Failure(t *testing.T) {
	t.Parallel()

	for _, o := range []Outcome{OutcomeTransferFailed, OutcomeRetrieveFailed} {
		if !o.Failure() {
			t.Errorf("%s.Failure() = false, want true", o)
		}
	}
	for _, o := range []Outcome{OutcomeMoved, OutcomeRetrieved, OutcomeEmptyOrEligible, OutcomeForeignItem} {
		if o.Failure() {
			t.Errorf("%s.Failure() = true, want false", o)
		}
	}
}
