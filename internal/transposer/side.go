// Package transposer defines the hardware-adapter port for the in-game
// transfer device. A transposer is a block with six directional
// connection points; each point may or may not have an inventory
// attached. The package holds the side enumeration, the item stack
// descriptor, and the Transposer interface that the bridge client (and
// test fakes) implement.
package transposer

import "fmt"

// Side is one of the six directional connection points on a transposer.
// The numeric values follow the platform's side numbering and define
// the fixed scan order used everywhere in ferryd.
type Side int

const (
	Down  Side = 0
	Up    Side = 1
	North Side = 2
	South Side = 3
	West  Side = 4
	East  Side = 5
)

// Sides lists all connection points in scan order. Iteration over this
// slice is the canonical enumeration order; the classifier's
// last-match-wins rule depends on it.
var Sides = []Side{Down, Up, North, South, West, East}

// sideNames maps sides to their lowercase display names.
var sideNames = map[Side]string{
	Down:  "down",
	Up:    "up",
	North: "north",
	South: "south",
	West:  "west",
	East:  "east",
}

// String returns the lowercase side name, or "side(N)" for values
// outside the valid range.
func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// Valid reports whether s is one of the six defined connection points.
func (s Side) Valid() bool {
	_, ok := sideNames[s]
	return ok
}

// ParseSide converts a side name (as produced by String) back to a
// Side. The comparison is exact; callers lowercase their input.
func ParseSide(name string) (Side, error) {
	for s, n := range sideNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown side %q", name)
}

// SideFromKey converts a numeric side key, as stored in the layout
// record file, to a Side.
func SideFromKey(key int) (Side, error) {
	s := Side(key)
	if !s.Valid() {
		return 0, fmt.Errorf("side key %d out of range", key)
	}
	return s, nil
}
