package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "layout.cfg"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	want := Layout{Source: transposer.North, Sink: transposer.Down, Complete: true}
	if err := s.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found := s.Load()
	if !found {
		t.Fatal("Load() reported not found after Save")
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	if err := s.Save(Layout{Source: transposer.East, Sink: transposer.West, Complete: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}

	want := "sourceConnectionPointKey=5\nsinkConnectionPointKey=4\nsetupComplete=true\n"
	if string(data) != want {
		t.Errorf("record file = %q, want %q", data, want)
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	if _, found := s.Load(); found {
		t.Error("Load() on a missing file reported found")
	}
}

func TestStore_LoadMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"truncated", "sourceConnectionPointKey=2\n"},
		{"no separator", "sourceConnectionPointKey 2\nsinkConnectionPointKey=0\nsetupComplete=true\n"},
		{"non-numeric side", "sourceConnectionPointKey=north\nsinkConnectionPointKey=0\nsetupComplete=true\n"},
		{"side out of range", "sourceConnectionPointKey=7\nsinkConnectionPointKey=0\nsetupComplete=true\n"},
		{"complete with equal sides", "sourceConnectionPointKey=2\nsinkConnectionPointKey=2\nsetupComplete=true\n"},
		{"missing sink", "sourceConnectionPointKey=2\nsetupComplete=true\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := testStore(t)
			if err := os.WriteFile(s.Path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}
			if _, found := s.Load(); found {
				t.Errorf("Load() reported found for %s", tc.name)
			}
		})
	}
}

func TestStore_LoadIncompleteFlag(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	// Any value other than the literal "true" reads as incomplete.
	content := "sourceConnectionPointKey=1\nsinkConnectionPointKey=3\nsetupComplete=yes\n"
	if err := os.WriteFile(s.Path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	got, found := s.Load()
	if !found {
		t.Fatal("well-formed incomplete record should load")
	}
	if got.Complete {
		t.Error("setupComplete=yes parsed as complete")
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	if err := s.Save(Layout{Source: transposer.Up, Sink: transposer.Up, Complete: true}); err == nil {
		t.Error("Save accepted a complete layout with equal sides")
	}
	if err := s.Save(Layout{Source: transposer.Side(9), Sink: transposer.Up, Complete: true}); err == nil {
		t.Error("Save accepted an out-of-range source side")
	}
}

func TestStore_SaveKeepsPriorRecordOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "layout.cfg"))

	good := Layout{Source: transposer.Up, Sink: transposer.Down, Complete: true}
	if err := s.Save(good); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Point the store somewhere unwritable: the original record must
	// survive a failed save attempt.
	broken := NewStore(filepath.Join(dir, "missing", "layout.cfg"))
	if err := broken.Save(Layout{Source: transposer.East, Sink: transposer.West, Complete: true}); err == nil {
		t.Fatal("Save into a missing directory should fail")
	}

	got, found := s.Load()
	if !found || got != good {
		t.Errorf("prior record damaged: got %+v found=%t", got, found)
	}
}

func TestLayout_String(t *testing.T) {
	t.Parallel()

	l := Layout{Source: transposer.North, Sink: transposer.South, Complete: true}
	if got := l.String(); !strings.Contains(got, "north") || !strings.Contains(got, "south") {
		t.Errorf("String() = %q, want charger/store sides named", got)
	}
	if got := (Layout{}).String(); got != "setup incomplete" {
		t.Errorf("incomplete String() = %q", got)
	}
}
