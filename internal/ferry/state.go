package ferry

import "time"

const (
	// remediateEvery is the failure count multiple at which the loop
	// re-prints the physical setup guidance.
	remediateEvery = 3

	// cooldownAfter is the failure count ceiling. Reaching it prints
	// the diagnostic block, resets the counter and switches the next
	// wait to longWait.
	cooldownAfter = 5

	shortWait  = 5 * time.Second
	longWait   = 30 * time.Second
	settleWait = 2 * time.Second
)

// FailureState tracks how the loop has been doing across cycles.
type FailureState struct {
	// Consecutive counts failure outcomes since the last success,
	// empty slot, or cooldown reset.
	Consecutive int

	// SucceededOnce is set after the first full round trip and never
	// cleared. It is what lets a later zero-unit move count as "fully
	// discharged" instead of a failure.
	SucceededOnce bool
}

// Escalation describes the operator-facing actions one cycle triggered.
type Escalation struct {
	// Remediate asks for the setup guidance to be re-printed.
	Remediate bool

	// Cooldown asks for the diagnostic block and the long wait. When
	// set, Failures holds the consecutive count that tripped it; the
	// counter itself has already been reset.
	Cooldown bool

	Failures int
}

// advance folds one final cycle outcome into the state and reports any
// escalation it caused. Both thresholds are checked on the same pass:
// a count of 3 remediates, a count of 5 remediates nothing but trips
// the cooldown and resets the counter.
func (s *FailureState) advance(o Outcome) Escalation {
	var esc Escalation

	switch o {
	case OutcomeRetrieved:
		s.SucceededOnce = true
		s.Consecutive = 0
	case OutcomeEmptyOrEligible:
		s.Consecutive = 0
	case OutcomeTransferFailed, OutcomeRetrieveFailed:
		s.Consecutive++
		if s.Consecutive%remediateEvery == 0 {
			esc.Remediate = true
		}
		if s.Consecutive >= cooldownAfter {
			esc.Cooldown = true
			esc.Failures = s.Consecutive
			s.Consecutive = 0
		}
	case OutcomeForeignItem, OutcomeMoved:
		// Neither success nor failure. The counter keeps its value.
	}

	return esc
}
