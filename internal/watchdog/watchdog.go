// Package watchdog keeps track of whether the bridge is reachable.
// The bridge disappears and returns as part of normal play: world
// saves, chunk reloads, server restarts. The watchdog probes through
// all of it and fires callbacks on the transitions so the rest of
// ferryd can reconnect streams or sharpen its failure diagnostics.
//
// httpkit's retry covers dial errors measured in milliseconds against
// a live bridge; the watchdog covers outages measured in seconds or
// minutes.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ProbeFunc checks whether the bridge is reachable. Return nil if healthy.
type ProbeFunc func(ctx context.Context) error

// Schedule sets the probe timing. The zero value of any field is
// replaced with its default by New.
type Schedule struct {
	// FirstDelay is the gap before the second startup probe (default 2s).
	FirstDelay time.Duration

	// MaxDelay caps backoff growth (default 60s).
	MaxDelay time.Duration

	// Growth scales the gap after each failed startup probe (default 2.0).
	Growth float64

	// StartupTries is how many probes phase one gets before the
	// watcher settles into plain polling (default 10).
	StartupTries int

	// PollInterval is the steady-state probe interval (default 30s).
	PollInterval time.Duration

	// ProbeTimeout bounds a single probe call (default 10s).
	ProbeTimeout time.Duration
}

// DefaultSchedule probes at 2s, 4s, 8s, 16s, 32s and then every 60s
// during startup, and polls every 30 seconds after that. A bridge
// restart after a chunk reload usually resolves within seconds, and
// the signal stream wants reconnecting promptly, so the poll stays
// short.
func DefaultSchedule() Schedule {
	return Schedule{
		FirstDelay:   2 * time.Second,
		MaxDelay:     60 * time.Second,
		Growth:       2.0,
		StartupTries: 10,
		PollInterval: 30 * time.Second,
		ProbeTimeout: 10 * time.Second,
	}
}

// withDefaults fills zeroed fields from DefaultSchedule.
func (s Schedule) withDefaults() Schedule {
	def := DefaultSchedule()
	if s.FirstDelay <= 0 {
		s.FirstDelay = def.FirstDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = def.MaxDelay
	}
	if s.Growth <= 0 {
		s.Growth = def.Growth
	}
	if s.StartupTries <= 0 {
		s.StartupTries = def.StartupTries
	}
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.ProbeTimeout <= 0 {
		s.ProbeTimeout = def.ProbeTimeout
	}
	return s
}

// Config wires up a Watcher.
type Config struct {
	// Probe checks bridge health. Must be safe for concurrent use.
	Probe ProbeFunc

	// Schedule controls probe timing.
	Schedule Schedule

	// OnReady fires when the bridge transitions to reachable,
	// including the first successful startup probe. Runs on its own
	// goroutine; must not block forever. Optional.
	OnReady func()

	// OnDown fires when the bridge transitions to unreachable. Runs on
	// its own goroutine; must not block forever. Optional.
	OnDown func(err error)

	// Logger for structured logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Watcher probes bridge health on a background goroutine. Create one
// with New, then call Start.
type Watcher struct {
	probe   ProbeFunc
	sched   Schedule
	onReady func()
	onDown  func(error)
	logger  *slog.Logger

	up     atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	lastErr error
}

// New builds a Watcher without starting it.
//
// Panics if Probe is nil; that is a wiring mistake, not a runtime
// condition.
func New(cfg Config) *Watcher {
	if cfg.Probe == nil {
		panic("watchdog: Config.Probe must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		probe:   cfg.Probe,
		sched:   cfg.Schedule.withDefaults(),
		onReady: cfg.OnReady,
		onDown:  cfg.OnDown,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}
}

// Start launches the probe goroutine. It runs until ctx is cancelled
// or Stop is called. Start must be called at most once.
func (w *Watcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(runCtx)
}

// Stop cancels the watcher and waits for its goroutine to exit. Stop
// before Start is a no-op.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

// IsReady reports whether the bridge looked reachable at the last
// probe. This is the method behind the bridge client's request gating
// and the ferry loop's cooldown diagnostics.
func (w *Watcher) IsReady() bool {
	return w.up.Load()
}

// LastError returns the most recent probe error, or nil if healthy.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	if !w.startup(ctx) {
		return
	}
	w.pollLoop(ctx)
}

// startup probes with growing gaps until the first success or the try
// budget runs out. Either way the watcher moves on to polling; false
// means ctx ended mid-wait.
func (w *Watcher) startup(ctx context.Context) bool {
	gap := w.sched.FirstDelay
	for try := 1; ; try++ {
		err := w.check(ctx)
		if err == nil {
			w.logger.Info("bridge connected", "after_attempts", try)
			w.markUp()
			return true
		}
		if try >= w.sched.StartupTries {
			w.logger.Info("bridge unreachable at startup, moving to background polling",
				"attempts", try,
				"error", err,
			)
			return true
		}

		w.logger.Debug("startup probe failed",
			"attempt", try,
			"of", w.sched.StartupTries,
			"retry_in", gap.String(),
			"error", err,
		)
		if !w.pause(ctx, gap) {
			return false
		}
		gap = min(time.Duration(float64(gap)*w.sched.Growth), w.sched.MaxDelay)
	}
}

// pollLoop probes on a fixed interval and fires the callbacks whenever
// the bridge flips between reachable and not.
func (w *Watcher) pollLoop(ctx context.Context) {
	tick := time.NewTicker(w.sched.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		err := w.check(ctx)
		switch {
		case err == nil && !w.up.Load():
			w.logger.Info("bridge recovered")
			w.markUp()
		case err != nil && w.up.Load():
			w.up.Store(false)
			w.logger.Info("bridge became unreachable", "error", err)
			if w.onDown != nil {
				go w.onDown(err)
			}
		case err != nil:
			w.logger.Debug("bridge still unreachable", "error", err)
		}
	}
}

// markUp flags the bridge reachable and fires OnReady off-thread.
func (w *Watcher) markUp() {
	w.up.Store(true)
	if w.onReady != nil {
		go w.onReady()
	}
}

// check runs one probe under the configured deadline and records the
// outcome.
func (w *Watcher) check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, w.sched.ProbeTimeout)
	err := w.probe(probeCtx)
	cancel()

	w.mu.Lock()
	w.lastErr = err
	w.mu.Unlock()
	return err
}

// pause waits out d unless ctx ends first.
func (w *Watcher) pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
