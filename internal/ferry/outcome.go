package ferry

// Outcome classifies what one transfer cycle accomplished.
type Outcome int

const (
	// OutcomeMoved marks the outbound hop: the tracked item left the
	// charger. It is a phase marker, not a final cycle outcome; a
	// cycle that moves the item always ends in OutcomeRetrieved or
	// OutcomeRetrieveFailed.
	OutcomeMoved Outcome = iota

	// OutcomeRetrieved is the full success: the item visited the store
	// and came back to the charger.
	OutcomeRetrieved

	// OutcomeEmptyOrEligible covers the benign cases: the reference
	// slot is empty, or the item had nothing to discharge (a zero-unit
	// move after the loop has succeeded at least once).
	OutcomeEmptyOrEligible

	// OutcomeTransferFailed is a failed outbound hop: the move
	// returned zero units before any success was ever seen, or the
	// adapter call itself failed.
	OutcomeTransferFailed

	// OutcomeRetrieveFailed is a failed return hop.
	OutcomeRetrieveFailed

	// OutcomeForeignItem means the reference slot holds something that
	// is not the tracked item. The loop leaves it alone.
	OutcomeForeignItem
)

var outcomeNames = map[Outcome]string{
	OutcomeMoved:           "moved",
	OutcomeRetrieved:       "retrieved",
	OutcomeEmptyOrEligible: "empty-or-eligible",
	OutcomeTransferFailed:  "transfer-failed",
	OutcomeRetrieveFailed:  "retrieve-failed",
	OutcomeForeignItem:     "foreign-item",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Failure reports whether the outcome counts against the consecutive
// failure counter.
func (o Outcome) Failure() bool {
	return o == OutcomeTransferFailed || o == OutcomeRetrieveFailed
}
