// Package ferry drives the charge/discharge round trip: move the
// tracked item from the charger into the energy store, let it settle,
// bring it back, and escalate when the hops keep failing. The loop is
// deliberately hard to kill; everything short of context cancellation
// degrades into an outcome and another cycle.
package ferry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/TAMATLT/ferryd/internal/item"
	"github.com/TAMATLT/ferryd/internal/layout"
	"github.com/TAMATLT/ferryd/internal/transposer"
)

// Config wires a Loop. Transposer and Layout are required; everything
// else has a usable zero value.
type Config struct {
	Transposer transposer.Transposer
	Layout     layout.Layout

	// Matcher decides what counts as the tracked item. The zero value
	// falls back to item.Default().
	Matcher item.Matcher

	// Slot is the 1-based reference slot in the charger. Defaults to 1.
	Slot int

	Logger *slog.Logger

	// Console receives the operator narrative: remediation guidance
	// and the cooldown diagnostic block. Defaults to io.Discard.
	Console io.Writer

	// Guidance re-prints the physical setup instructions during
	// remediation. Optional.
	Guidance func(io.Writer)

	// BridgeUp reports whether the game bridge is reachable. Used only
	// to sharpen the cooldown diagnostics. Optional.
	BridgeUp func() bool

	// OnCycle is called after every finished cycle. Optional.
	OnCycle func(CycleResult)

	// OnCooldown is called when the failure ceiling trips. Optional.
	OnCooldown func(context.Context, CooldownInfo)
}

// CycleResult summarizes one finished cycle.
type CycleResult struct {
	At       time.Time
	Outcome  Outcome
	Moved    int // units that left the charger
	Returned int // units that came back
	Failures int // consecutive failure count after the cycle
	Wait     time.Duration

	Escalation Escalation
}

// CooldownInfo is handed to OnCooldown when the failure counter hits
// its ceiling.
type CooldownInfo struct {
	At       time.Time
	Failures int     // consecutive failures that tripped the cooldown
	Outcome  Outcome // final outcome of the tripping cycle
	BridgeUp bool
}

// Stats is a point-in-time snapshot of the loop, safe to read from
// other goroutines.
type Stats struct {
	Cycles        uint64
	UnitsMoved    uint64
	LastOutcome   Outcome
	LastCycle     time.Time
	Consecutive   int
	SucceededOnce bool
}

// Loop runs transfer cycles until its context is cancelled.
type Loop struct {
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) bool

	mu    sync.Mutex
	state FailureState
	stats Stats
}

func New(cfg Config) *Loop {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Console == nil {
		cfg.Console = io.Discard
	}
	if cfg.Slot <= 0 {
		cfg.Slot = 1
	}
	if cfg.Matcher.ID == "" && len(cfg.Matcher.LabelWords) == 0 {
		cfg.Matcher = item.Default()
	}
	return &Loop{cfg: cfg, sleep: sleepCtx}
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Run executes cycles until ctx is cancelled and then returns nil. A
// broken bridge, a jammed store or a missing item all degrade into
// failure outcomes; no cycle error ever stops the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.cfg.Logger.Info("transfer loop started",
		"layout", l.cfg.Layout.String(),
		"slot", l.cfg.Slot,
		"item", l.cfg.Matcher.ID)

	for {
		select {
		case <-ctx.Done():
			l.cfg.Logger.Info("transfer loop stopped")
			return nil
		default:
		}

		res := l.runCycle(ctx)
		if l.cfg.OnCycle != nil {
			l.cfg.OnCycle(res)
		}
		if !l.sleep(ctx, res.Wait) {
			l.cfg.Logger.Info("transfer loop stopped")
			return nil
		}
	}
}

func (l *Loop) runCycle(ctx context.Context) CycleResult {
	res := CycleResult{At: time.Now(), Wait: shortWait}
	res.Outcome, res.Moved, res.Returned = l.transferOnce(ctx)

	l.mu.Lock()
	res.Escalation = l.state.advance(res.Outcome)
	res.Failures = l.state.Consecutive
	l.stats.Cycles++
	l.stats.UnitsMoved += uint64(res.Moved)
	l.stats.LastOutcome = res.Outcome
	l.stats.LastCycle = res.At
	l.stats.Consecutive = l.state.Consecutive
	l.stats.SucceededOnce = l.state.SucceededOnce
	l.mu.Unlock()

	switch res.Outcome {
	case OutcomeRetrieved:
		l.cfg.Logger.Info("cycle complete", "outcome", res.Outcome, "units", res.Returned)
	case OutcomeEmptyOrEligible:
		l.cfg.Logger.Debug("nothing to do", "outcome", res.Outcome)
	}

	if res.Escalation.Remediate {
		l.remediate(res)
	}
	if res.Escalation.Cooldown {
		res.Wait = longWait
		l.cooldown(ctx, res)
	}
	return res
}

// transferOnce performs the slot check and up to two hops, and returns
// the outcome plus the units moved out and back.
func (l *Loop) transferOnce(ctx context.Context) (Outcome, int, int) {
	src, sink := l.cfg.Layout.Source, l.cfg.Layout.Sink

	st, err := l.cfg.Transposer.StackInSlot(ctx, src, l.cfg.Slot)
	if err != nil {
		l.cfg.Logger.Warn("slot read failed", "side", src, "slot", l.cfg.Slot, "error", err)
		return OutcomeTransferFailed, 0, 0
	}
	if st == nil {
		return OutcomeEmptyOrEligible, 0, 0
	}
	if !l.cfg.Matcher.Matches(st) {
		l.cfg.Logger.Warn("foreign item in reference slot",
			"side", src, "slot", l.cfg.Slot, "item", st.ItemID, "label", st.Label)
		return OutcomeForeignItem, 0, 0
	}

	moved, err := l.cfg.Transposer.TransferItem(ctx, src, sink, 1)
	if err != nil {
		l.cfg.Logger.Warn("outbound transfer failed", "from", src, "to", sink, "error", err)
		return OutcomeTransferFailed, 0, 0
	}
	if moved == 0 {
		if l.succeededOnce() {
			// The store refuses items with nothing left to discharge,
			// so a zero-unit move after a past success means the item
			// is simply done for now.
			l.cfg.Logger.Debug("nothing to discharge", "from", src, "to", sink)
			return OutcomeEmptyOrEligible, 0, 0
		}
		l.cfg.Logger.Warn("outbound transfer moved nothing", "from", src, "to", sink)
		return OutcomeTransferFailed, 0, 0
	}

	l.cfg.Logger.Info("item moved to store", "from", src, "to", sink, "units", moved)

	retCtx := ctx
	if !l.sleep(ctx, settleWait) {
		// Shutting down mid-cycle. Still try to bring the item home on
		// a short detached deadline so it is not stranded in the store.
		var cancel context.CancelFunc
		retCtx, cancel = context.WithTimeout(context.Background(), shortWait)
		defer cancel()
	}

	returned, err := l.cfg.Transposer.TransferItem(retCtx, sink, src, 1)
	if err != nil {
		l.cfg.Logger.Warn("return transfer failed", "from", sink, "to", src, "error", err)
		return OutcomeRetrieveFailed, moved, 0
	}
	if returned == 0 {
		l.cfg.Logger.Warn("return transfer brought nothing back", "from", sink, "to", src)
		return OutcomeRetrieveFailed, moved, 0
	}
	return OutcomeRetrieved, moved, returned
}

func (l *Loop) remediate(res CycleResult) {
	l.cfg.Logger.Warn("repeated transfer failures", "consecutive", res.Failures)
	fmt.Fprintf(l.cfg.Console,
		"\nferryd has hit %d transfer failures in a row.\nDouble-check the physical setup:\n\n",
		res.Failures)
	if l.cfg.Guidance != nil {
		l.cfg.Guidance(l.cfg.Console)
	}
}

func (l *Loop) cooldown(ctx context.Context, res CycleResult) {
	bridgeUp := true
	if l.cfg.BridgeUp != nil {
		bridgeUp = l.cfg.BridgeUp()
	}

	l.cfg.Logger.Error("too many consecutive failures, cooling down",
		"failures", res.Escalation.Failures,
		"wait", longWait,
		"bridge_up", bridgeUp)

	rule := strings.Repeat("=", 60)
	w := l.cfg.Console
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "ferryd: %d transfers in a row have failed.\n", res.Escalation.Failures)
	fmt.Fprintf(w, "Pausing for %s before trying again.\n\n", longWait)
	fmt.Fprintln(w, "Things worth checking while it waits:")
	fmt.Fprintf(w, "  - the tracked item is in slot %d of the charger\n", l.cfg.Slot)
	fmt.Fprintln(w, "  - the charger and store are still attached to the transposer")
	if bridgeUp {
		fmt.Fprintln(w, "  - the store is not full or jammed")
	} else {
		fmt.Fprintln(w, "  - the bridge is NOT responding; is the world loaded?")
	}
	fmt.Fprintf(w, "%s\n\n", rule)

	if l.cfg.OnCooldown != nil {
		l.cfg.OnCooldown(ctx, CooldownInfo{
			At:       res.At,
			Failures: res.Escalation.Failures,
			Outcome:  res.Outcome,
			BridgeUp: bridgeUp,
		})
	}
}

func (l *Loop) succeededOnce() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.SucceededOnce
}

// sleepCtx sleeps for d unless ctx is cancelled first. It reports
// whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
