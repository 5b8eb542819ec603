package item

import (
	"testing"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

func TestMatcher_Matches(t *testing.T) {
	t.Parallel()

	m := Default()

	cases := []struct {
		name  string
		stack *transposer.Stack
		want  bool
	}{
		{"nil stack", nil, false},
		{"exact internal id", &transposer.Stack{ItemID: "mod:energycube"}, true},
		{"id with unrelated label", &transposer.Stack{ItemID: "mod:energycube", Label: "???"}, true},
		{"label with both words", &transposer.Stack{ItemID: "other:thing", Label: "Basic Energy Cube"}, true},
		{"label case insensitive", &transposer.Stack{ItemID: "other:thing", Label: "ELITE ENERGY CUBE"}, true},
		{"label missing one word", &transposer.Stack{ItemID: "other:thing", Label: "Energy Tablet"}, false},
		{"unrelated item", &transposer.Stack{ItemID: "minecraft:stone", Label: "Stone"}, false},
		{"empty label no id match", &transposer.Stack{ItemID: "other:thing"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := m.Matches(tc.stack); got != tc.want {
				t.Errorf("Matches(%+v) = %t, want %t", tc.stack, got, tc.want)
			}
		})
	}
}

func TestMatcher_DeploymentVariant(t *testing.T) {
	t.Parallel()

	m := Matcher{ID: "mod:battery", LabelWords: []string{"battery", "upgrade"}}

	if !m.Matches(&transposer.Stack{ItemID: "other:cell", Label: "Battery Upgrade MK3"}) {
		t.Error("variant matcher missed its label words")
	}
	if m.Matches(&transposer.Stack{ItemID: "other:cell", Label: "Basic Energy Cube"}) {
		t.Error("variant matcher accepted the stock cube label")
	}
}

func TestMatcher_NoLabelWords(t *testing.T) {
	t.Parallel()

	m := Matcher{ID: "mod:exact"}
	if m.Matches(&transposer.Stack{ItemID: "other:thing", Label: "anything"}) {
		t.Error("matcher with no label words should only match by ID")
	}
}
