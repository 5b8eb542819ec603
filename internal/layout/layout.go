// Package layout persists the physical device layout discovered by the
// setup wizard: which connection point holds the charger and which
// holds the stationary energy store. The record lives in a small
// line-oriented key=value file whose format is shared with the in-game
// scripts, so it stays exactly three lines and is parsed tolerantly:
// anything unexpected degrades to "no layout on disk" rather than an
// error.
package layout

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TAMATLT/ferryd/internal/transposer"
)

// File format keys, in write order. These are an external interface:
// the in-game scripts read the same file.
const (
	keySource   = "sourceConnectionPointKey"
	keySink     = "sinkConnectionPointKey"
	keyComplete = "setupComplete"
)

// Layout is the persisted device arrangement around the transposer.
type Layout struct {
	// Source is the connection point with the charger.
	Source transposer.Side

	// Sink is the connection point with the stationary energy store.
	Sink transposer.Side

	// Complete reports whether setup has resolved both roles. When
	// true, Source and Sink are valid and distinct.
	Complete bool
}

// Validate checks the completeness invariant: a complete layout must
// name two valid, distinct connection points.
func (l Layout) Validate() error {
	if !l.Complete {
		return nil
	}
	if !l.Source.Valid() {
		return fmt.Errorf("source side %d invalid", int(l.Source))
	}
	if !l.Sink.Valid() {
		return fmt.Errorf("sink side %d invalid", int(l.Sink))
	}
	if l.Source == l.Sink {
		return fmt.Errorf("source and sink are both %s", l.Source)
	}
	return nil
}

// String renders the layout for logs and the status report.
func (l Layout) String() string {
	if !l.Complete {
		return "setup incomplete"
	}
	return fmt.Sprintf("charger=%s store=%s", l.Source, l.Sink)
}

// Store reads and writes the layout record at a fixed path.
type Store struct {
	Path string
}

// NewStore returns a store for the layout record at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the layout record. The boolean is false when the file is
// absent, truncated, or malformed in any way, including a complete
// record that fails Validate. Load never returns an error: a broken
// record means setup has to run again, nothing more.
func (s *Store) Load() (Layout, bool) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Layout{}, false
	}
	defer f.Close()

	values := make(map[string]string, 3)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Layout{}, false
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if sc.Err() != nil {
		return Layout{}, false
	}

	sourceKey, err := strconv.Atoi(values[keySource])
	if err != nil {
		return Layout{}, false
	}
	sinkKey, err := strconv.Atoi(values[keySink])
	if err != nil {
		return Layout{}, false
	}
	source, err := transposer.SideFromKey(sourceKey)
	if err != nil {
		return Layout{}, false
	}
	sink, err := transposer.SideFromKey(sinkKey)
	if err != nil {
		return Layout{}, false
	}

	l := Layout{
		Source: source,
		Sink:   sink,
		// Anything other than the literal "true" reads as incomplete.
		Complete: values[keyComplete] == "true",
	}
	if l.Validate() != nil {
		return Layout{}, false
	}
	return l, true
}

// Save writes all three fields in stable order. The record is written
// to a temp file and renamed into place, so a failed write leaves any
// prior record intact. Save refuses a layout that Load would reject.
func (s *Store) Save(l Layout) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%d\n", keySource, int(l.Source))
	fmt.Fprintf(&b, "%s=%d\n", keySink, int(l.Sink))
	fmt.Fprintf(&b, "%s=%t\n", keyComplete, l.Complete)

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".layout-*")
	if err != nil {
		return fmt.Errorf("create temp record in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}
	return nil
}
