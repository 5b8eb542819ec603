package scan

import (
	"strings"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

// Predicate decides whether a discovered inventory fills a role. Role
// matching is a heuristic over display names, so it is kept as a
// swappable strategy rather than string literals buried in control
// flow.
type Predicate func(Inventory) bool

// NameHasAny returns a predicate matching inventories whose display
// name contains any of the given substrings, case-insensitively.
func NameHasAny(substrings ...string) Predicate {
	lowered := make([]string, len(substrings))
	for i, s := range substrings {
		lowered[i] = strings.ToLower(s)
	}
	return func(inv Inventory) bool {
		name := strings.ToLower(inv.Name)
		for _, s := range lowered {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

// Default role predicates. The charger holds the tracked item between
// cycles; the energy store receives it for discharge.
var (
	IsCharger     = NameHasAny("charger")
	IsEnergyStore = NameHasAny("cube", "energy")
)

// Classify assigns the source (charger) and sink (store) roles over a
// scan result. Sides are tested in fixed scan order and the last match
// wins for each role; a nil side means no inventory qualified. Running
// Classify twice over the same result yields the same assignment.
func Classify(invs map[transposer.Side]Inventory, isSource, isSink Predicate) (source, sink *transposer.Side) {
	for _, side := range transposer.Sides {
		inv, ok := invs[side]
		if !ok {
			continue
		}
		if isSource(inv) {
			s := side
			source = &s
		}
		if isSink(inv) {
			s := side
			sink = &s
		}
	}
	return source, sink
}
