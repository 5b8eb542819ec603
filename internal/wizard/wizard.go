// Package wizard walks an operator through the physical setup: place
// the charger and the energy store against the transposer, confirm,
// scan, classify, and persist the layout. It keeps prompting until a
// scan resolves both roles onto two different sides.
package wizard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/TAMATLT/ferryd/internal/layout"
	"github.com/TAMATLT/ferryd/internal/scan"
	"github.com/TAMATLT/ferryd/internal/transposer"
)

// ErrInputClosed is returned when the input stream ends before the
// setup is confirmed, e.g. when stdin is not a terminal.
var ErrInputClosed = errors.New("wizard: input closed before setup finished")

// Wizard prompts on Out, reads confirmations from In, and saves the
// resolved layout to Store.
type Wizard struct {
	Transposer transposer.Transposer
	Store      *layout.Store
	In         io.Reader
	Out        io.Writer
	Logger     *slog.Logger
}

// WriteInstructions prints the physical setup guidance. The ferry loop
// reuses it when transfers keep failing.
func WriteInstructions(w io.Writer) {
	fmt.Fprintln(w, "  1. Put the charger and the energy store directly against the")
	fmt.Fprintln(w, "     transposer, each touching a different face.")
	fmt.Fprintln(w, "  2. The charger is recognized by its name (it should contain")
	fmt.Fprintln(w, "     \"charger\"); the store by \"cube\" or \"energy\".")
	fmt.Fprintln(w, "  3. Keep other inventories off the remaining faces while setting")
	fmt.Fprintln(w, "     up, so nothing else gets picked by mistake.")
	fmt.Fprintln(w, "  4. Put the tracked item into slot 1 of the charger.")
}

// Run loops until a scan finds a charger and a store on two different
// sides, then saves and returns the completed layout. It returns early
// only when ctx is cancelled or In is exhausted.
func (wz *Wizard) Run(ctx context.Context) (layout.Layout, error) {
	out := wz.Out
	if out == nil {
		out = io.Discard
	}
	logger := wz.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fmt.Fprintln(out, "ferryd setup")
	fmt.Fprintln(out)
	WriteInstructions(out)
	fmt.Fprintln(out)

	lines := readLines(wz.In)
	for {
		fmt.Fprint(out, "Press Enter when the machines are in place... ")
		if err := waitLine(ctx, lines); err != nil {
			return layout.Layout{}, err
		}

		invs := scan.Scan(ctx, wz.Transposer, logger)
		source, sink := scan.Classify(invs, scan.IsCharger, scan.IsEnergyStore)

		if source != nil && sink != nil && *source != *sink {
			lay := layout.Layout{Source: *source, Sink: *sink, Complete: true}
			if err := wz.Store.Save(lay); err != nil {
				return layout.Layout{}, fmt.Errorf("save layout: %w", err)
			}
			fmt.Fprintf(out, "\nFound it: charger on the %s side, store on the %s side. Saved.\n",
				*source, *sink)
			logger.Info("setup complete", "charger", *source, "store", *sink)
			return lay, nil
		}

		fmt.Fprintln(out, "\nThat doesn't look right yet. Connected inventories:")
		scan.WriteReport(out, invs)
		switch {
		case source == nil && sink == nil:
			fmt.Fprintln(out, "Neither machine was recognized.")
		case source == nil:
			fmt.Fprintln(out, "No charger found; its name should contain \"charger\".")
		case sink == nil:
			fmt.Fprintln(out, "No energy store found; its name should contain \"cube\" or \"energy\".")
		default:
			fmt.Fprintf(out, "The %s side matched both roles; the machines must sit on different faces.\n",
				*source)
		}
		fmt.Fprintln(out, "Adjust the machines and try again.")
		fmt.Fprintln(out)
	}
}

// readLines feeds lines from r into a channel so the prompt can race
// input against context cancellation.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

func waitLine(ctx context.Context, lines <-chan string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-lines:
		if !ok {
			return ErrInputClosed
		}
		return nil
	}
}
