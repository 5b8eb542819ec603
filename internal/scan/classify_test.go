package scan

import (
	"testing"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

func inv(side transposer.Side, name string) Inventory {
	return Inventory{Side: side, Slots: 27, Name: name}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		invs       map[transposer.Side]Inventory
		wantSource *transposer.Side
		wantSink   *transposer.Side
	}{
		{
			name: "both roles resolve",
			invs: map[transposer.Side]Inventory{
				transposer.Up:   inv(transposer.Up, "Charger"),
				transposer.Down: inv(transposer.Down, "Elite Energy Cube"),
			},
			wantSource: sideOf(transposer.Up),
			wantSink:   sideOf(transposer.Down),
		},
		{
			name: "case insensitive",
			invs: map[transposer.Side]Inventory{
				transposer.East: inv(transposer.East, "CHARGER mk2"),
				transposer.West: inv(transposer.West, "ENERGY vault"),
			},
			wantSource: sideOf(transposer.East),
			wantSink:   sideOf(transposer.West),
		},
		{
			name: "last match wins in scan order",
			invs: map[transposer.Side]Inventory{
				transposer.Down: inv(transposer.Down, "Charger A"),
				transposer.East: inv(transposer.East, "Charger B"),
			},
			wantSource: sideOf(transposer.East),
			wantSink:   nil,
		},
		{
			name: "sink matches on cube alone",
			invs: map[transposer.Side]Inventory{
				transposer.North: inv(transposer.North, "Ultimate Cube"),
			},
			wantSource: nil,
			wantSink:   sideOf(transposer.North),
		},
		{
			name: "nothing qualifies",
			invs: map[transposer.Side]Inventory{
				transposer.South: inv(transposer.South, "Iron Chest"),
			},
			wantSource: nil,
			wantSink:   nil,
		},
		{
			name:       "empty scan",
			invs:       nil,
			wantSource: nil,
			wantSink:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			source, sink := Classify(tc.invs, IsCharger, IsEnergyStore)
			checkSide(t, "source", source, tc.wantSource)
			checkSide(t, "sink", sink, tc.wantSink)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	t.Parallel()

	invs := map[transposer.Side]Inventory{
		transposer.Down:  inv(transposer.Down, "Basic Energy Cube"),
		transposer.Up:    inv(transposer.Up, "Charger"),
		transposer.South: inv(transposer.South, "Elite Energy Cube"),
	}

	s1, k1 := Classify(invs, IsCharger, IsEnergyStore)
	s2, k2 := Classify(invs, IsCharger, IsEnergyStore)

	if !sameSide(s1, s2) || !sameSide(k1, k2) {
		t.Errorf("classification changed between runs: (%v,%v) then (%v,%v)", s1, k1, s2, k2)
	}
}

func TestNameHasAny(t *testing.T) {
	t.Parallel()

	p := NameHasAny("cube", "energy")
	if !p(inv(transposer.Down, "Energy Vault")) {
		t.Error("predicate missed substring match")
	}
	if p(inv(transposer.Down, "Iron Chest")) {
		t.Error("predicate matched unrelated name")
	}
}

func sideOf(s transposer.Side) *transposer.Side { return &s }

func sameSide(a, b *transposer.Side) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func checkSide(t *testing.T, role string, got, want *transposer.Side) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %v, want nil", role, *got)
	case want != nil && got == nil:
		t.Errorf("%s = nil, want %v", role, *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("%s = %v, want %v", role, *got, *want)
	}
}
