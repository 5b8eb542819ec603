// Ferryd keeps a rechargeable item cycling between a charger and an
// energy store through an in-game transposer. It talks to the world
// through a small HTTP bridge, records every cycle in a local journal,
// and optionally reports to Home Assistant over MQTT and to a human
// over SMTP when transfers keep failing. Configuration is loaded from
// a single YAML file discovered automatically (see
// [config.DefaultSearchPaths]).
//
// Usage:
//
//	ferryd run                Start the transfer loop
//	ferryd setup              Redo the interactive device setup
//	ferryd scan               Scan and classify attached inventories
//	ferryd status             Show the layout and recent transfer history
//	ferryd init [dir]         Initialize a working directory with defaults
//	ferryd version            Print version and build information
//	ferryd -o json status     Output machine-readable JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/TAMATLT/ferryd/internal/alert"
	"github.com/TAMATLT/ferryd/internal/bridge"
	"github.com/TAMATLT/ferryd/internal/buildinfo"
	"github.com/TAMATLT/ferryd/internal/config"
	"github.com/TAMATLT/ferryd/internal/ferry"
	"github.com/TAMATLT/ferryd/internal/httpkit"
	"github.com/TAMATLT/ferryd/internal/item"
	"github.com/TAMATLT/ferryd/internal/journal"
	"github.com/TAMATLT/ferryd/internal/layout"
	"github.com/TAMATLT/ferryd/internal/mqtt"
	"github.com/TAMATLT/ferryd/internal/scan"
	"github.com/TAMATLT/ferryd/internal/transposer"
	"github.com/TAMATLT/ferryd/internal/watchdog"
	"github.com/TAMATLT/ferryd/internal/wizard"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main wires the OS world (argv, stdio, the exit code) into [run] and
// does nothing else, so the full startup-to-shutdown lifecycle stays
// reachable from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// cliArgs is the parsed command line: the global flags, the subcommand
// verb, and whatever followed the verb.
type cliArgs struct {
	configPath string
	output     string
	command    string
	rest       []string
	help       bool
}

// parseArgs walks the argument list by hand. The flag package hangs its
// state off package globals, which breaks calling run concurrently from
// tests, and the surface here is two flags and a verb.
func parseArgs(args []string) (cliArgs, error) {
	var c cliArgs

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(args) {
			return "", fmt.Errorf("%s needs a value", flag)
		}
		return args[i], nil
	}

	for ; i < len(args); i++ {
		arg := args[i]

		// The -name=value spelling carries its value inline.
		if name, val, found := strings.Cut(arg, "="); found {
			switch name {
			case "-config":
				c.configPath = val
				continue
			case "-o", "--output":
				c.output = val
				continue
			}
		}

		switch arg {
		case "-h", "-help", "--help":
			c.help = true
			return c, nil
		case "-config":
			v, err := next(arg)
			if err != nil {
				return c, err
			}
			c.configPath = v
		case "-o", "--output":
			v, err := next(arg)
			if err != nil {
				return c, err
			}
			c.output = v
		default:
			switch {
			case c.command != "":
				c.rest = append(c.rest, arg)
			case strings.HasPrefix(arg, "-"):
				return c, fmt.Errorf("unknown flag: %s", arg)
			default:
				c.command = arg
			}
		}
	}

	if c.output == "" {
		c.output = "text"
	}
	if c.output != "text" && c.output != "json" {
		return c, fmt.Errorf("unknown output format: %q (expected text or json)", c.output)
	}
	return c, nil
}

// run executes one ferryd invocation. Every OS dependency arrives as a
// parameter: ctx bounds the process lifetime (cancelling it shuts the
// daemon down cleanly), stdin feeds the setup wizard, stdout and stderr
// receive reports and logs, and args is the command line after the
// program name. The returned error becomes the exit status; main
// prints it and exits non-zero.
func run(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, args []string) error {
	cli, err := parseArgs(args)
	if err != nil {
		return err
	}
	if cli.help {
		return printUsage(stdout)
	}

	switch cli.command {
	case "run":
		return runFerry(ctx, stdin, stdout, stderr, cli.configPath)
	case "setup":
		return runSetup(ctx, stdin, stdout, cli.configPath)
	case "scan":
		return runScan(ctx, stdout, stderr, cli.configPath, cli.output)
	case "status":
		return runStatus(ctx, stdout, cli.configPath, cli.output)
	case "init":
		dir := "."
		if len(cli.rest) > 0 {
			dir = cli.rest[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, cli.output)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", cli.command)
	}
}

// runVersion prints the build stamp, either as an indented human block
// or as one JSON object.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintln(w, buildinfo.String())
	// Map iteration would shuffle the block on every run.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the command summary shown for bare invocations and
// for the help flags.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "ferryd - transposer item ferry")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: ferryd [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run          Start the transfer loop (runs setup first if needed)")
	fmt.Fprintln(w, "  setup        Redo the interactive device setup")
	fmt.Fprintln(w, "  scan         Scan and classify the attached inventories")
	fmt.Fprintln(w, "  status       Show the saved layout and recent transfer history")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>     Use this config file instead of searching")
	fmt.Fprintln(w, "  -o, --output <fmt> Report format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/ferryd/config.yaml, /etc/ferryd/config.yaml")
	return nil
}

// runFerry handles the "ferryd run" subcommand. It is the primary
// operating mode: loads config, opens the journal, connects to the
// bridge, resolves the device layout (running setup inline when there
// is none), starts the optional MQTT and alert plumbing, and drives
// transfer cycles until a shutdown signal arrives.
//
// The shutdown sequence is:
//  1. SIGINT or SIGTERM cancels the context
//  2. The loop finishes its cycle (the return hop gets a short
//     detached deadline so the item is not stranded in the store)
//  3. The MQTT publisher announces "offline" and disconnects
//  4. The journal database and the watchdog are closed via defers
func runFerry(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting ferryd", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// The bootstrap logger above covered the banner and config errors;
	// from here on the configured level and format apply.
	logger = configuredLogger(stdout, cfg)

	logger.Info("config loaded",
		"path", cfgPath,
		"bridge", cfg.Bridge.URL,
		"slot", cfg.Ferry.Slot,
		"data_dir", cfg.DataDir,
	)

	// --- Signal handling ---
	// SIGINT and SIGTERM cancel the same ctx every component runs
	// under, the inline setup included.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Data directory ---
	// Holds the layout record, the cycle journal, and the MQTT
	// instance ID.
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	// --- Bridge clients ---
	// The HTTP client is the only doorway into the game world; every
	// transposer call goes through it. The signal client shares the URL
	// and token but keeps its own WebSocket connection.
	client := newBridgeClient(cfg, logger)
	signals := bridge.NewSignalClient(cfg.Bridge.URL, cfg.Bridge.Token, logger)
	defer signals.Close()

	// --- Bridge watchdog ---
	// Background health probing with exponential backoff. The loop
	// itself never stops on bridge failures; the watchdog exists to
	// sharpen the cooldown diagnostics and to revive the signal stream
	// after an outage. It also performs the initial stream connection,
	// since OnReady fires on the first successful probe.
	watcher := watchdog.New(watchdog.Config{
		Probe:    func(pCtx context.Context) error { return client.Ping(pCtx) },
		Schedule: watchdog.DefaultSchedule(),
		OnReady: func() {
			wsCtx, wsCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer wsCancel()
			if err := signals.Reconnect(wsCtx); err != nil {
				logger.Error("signal stream reconnect failed", "error", err)
			}
		},
		Logger: logger,
	})
	client.SetWatcher(watcher)
	watcher.Start(ctx)
	defer watcher.Stop()

	// --- Device layout ---
	// Load the saved layout, or walk the operator through setup right
	// here when there is none. A broken record reads as "no layout";
	// setup simply runs again.
	layoutStore := layout.NewStore(layoutPath(cfg))
	lay, ok := layoutStore.Load()
	if ok {
		logger.Info("layout loaded", "path", layoutStore.Path, "layout", lay.String())
	} else {
		logger.Info("no usable layout on disk, running setup")
		wz := &wizard.Wizard{
			Transposer: client,
			Store:      layoutStore,
			In:         stdin,
			Out:        stdout,
			Logger:     logger,
		}
		lay, err = wz.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Info("ferryd stopped")
			return nil
		}
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	// --- Signal stream ---
	// Hardware signals announce inventories appearing and disappearing.
	// The loop survives a missing machine on its own; the signal gives
	// the log an immediate, named cause when a ferry-side machine goes
	// away.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-signals.Signals():
				side, err := transposer.SideFromKey(sig.Side)
				if err != nil {
					logger.Debug("signal for unknown side", "type", sig.Type, "side", sig.Side)
					continue
				}
				switch sig.Type {
				case bridge.SignalComponentAdded:
					logger.Info("inventory attached", "side", side, "component", sig.Component)
				case bridge.SignalComponentRemoved:
					if side == lay.Source || side == lay.Sink {
						logger.Warn("ferry machine detached", "side", side, "layout", lay.String())
					} else {
						logger.Info("inventory detached", "side", side)
					}
				}
			}
		}
	}()

	// --- Cycle journal ---
	// Every finished cycle lands in SQLite, so "has it been moving?"
	// is answerable after a restart and from the status subcommand
	// while the daemon runs.
	journalDB, store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journalDB.Close()
	logger.Info("journal opened", "path", filepath.Join(cfg.DataDir, "journal.db"))

	// A cycle lands every few seconds while the loop runs, so old rows
	// are dropped on every start. 90 days is far more history than the
	// status report ever shows.
	if n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -90)); err != nil {
		logger.Warn("journal prune failed", "error", err)
	} else if n > 0 {
		logger.Info("journal pruned", "removed", n)
	}

	// The OnCycle callback below closes over this; startTelemetry fills
	// it in before the first cycle runs.
	var units *mqtt.DailyUnits

	// --- Cooldown alerts ---
	// Optional. One email per quiet period when the loop gives up and
	// enters a cooldown.
	var mailer *alert.Mailer
	if cfg.Alerts.Configured() {
		mailer = alert.NewMailer(cfg.Alerts, logger)
		logger.Info("cooldown alerts enabled", "to", cfg.Alerts.To, "quiet_period_min", cfg.Alerts.QuietPeriodMin)
	} else {
		logger.Info("cooldown alerts disabled (not configured)")
	}

	// --- Transfer loop ---
	// The core of the daemon. Everything else in this function exists
	// to feed it or to report on it.
	loopCfg := ferry.Config{
		Transposer: client,
		Layout:     lay,
		Matcher:    item.Matcher{ID: cfg.Ferry.TrackedItemID, LabelWords: cfg.Ferry.TrackedLabelWords},
		Slot:       cfg.Ferry.Slot,
		Logger:     logger,
		Console:    stdout,
		Guidance:   wizard.WriteInstructions,
		BridgeUp:   watcher.IsReady,
		OnCycle: func(res ferry.CycleResult) {
			// The final cycle's record should still land while ctx is
			// tearing down, so the append runs on its own deadline.
			recCtx, recCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer recCancel()
			if err := store.Append(recCtx, journal.FromCycle(res)); err != nil {
				logger.Warn("journal append failed", "error", err)
			}
			if units != nil {
				units.OnCycle(res.Moved, res.Outcome.Failure())
			}
		},
	}
	if mailer != nil {
		loopCfg.OnCooldown = mailer.CooldownAlert
	}
	loop := ferry.New(loopCfg)

	// --- HA telemetry ---
	// The loop had to exist first; the publisher reads its counters
	// through loopStats.
	mqttPub, mqttUnits, err := startTelemetry(ctx, cfg, loop, logger)
	if err != nil {
		return err
	}
	units = mqttUnits

	// Run transfer cycles until a shutdown signal arrives. Run only
	// ever returns on context cancellation.
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("transfer loop: %w", err)
	}

	// The farewell "offline" publish happens after ctx is already
	// cancelled, so it runs on its own short deadline.
	if mqttPub != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := mqttPub.Stop(stopCtx); err != nil {
			logger.Error("mqtt shutdown failed", "error", err)
		}
	}

	logger.Info("ferryd stopped")
	return nil
}

// startTelemetry wires the optional Home Assistant MQTT surface: the
// instance identity, the per-day counter, and the publisher goroutine.
// Both returns are nil when no broker is configured.
func startTelemetry(ctx context.Context, cfg *config.Config, loop *ferry.Loop, logger *slog.Logger) (*mqtt.Publisher, *mqtt.DailyUnits, error) {
	if !cfg.MQTT.Configured() {
		logger.Info("mqtt publishing disabled (not configured)")
		return nil, nil, nil
	}

	instanceID, err := mqtt.InstanceID(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load mqtt instance id: %w", err)
	}

	units := mqtt.NewDailyUnits(nil) // resets at local midnight
	pub := mqtt.New(cfg.MQTT, instanceID, units, &loopStats{loop: loop}, logger)
	go func() {
		if err := pub.Start(ctx); err != nil {
			logger.Error("mqtt publisher failed", "error", err)
		}
	}()

	logger.Info("mqtt publishing enabled",
		"broker", cfg.MQTT.Broker,
		"device_name", cfg.MQTT.DeviceName,
		"interval", cfg.MQTT.PublishIntervalSec,
	)
	return pub, units, nil
}

// runSetup handles the "ferryd setup" subcommand. It forces the
// interactive wizard even when a layout record already exists, e.g.
// after the machines have been physically rearranged.
func runSetup(ctx context.Context, stdin io.Reader, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	client := newBridgeClient(cfg, logger)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}

	wz := &wizard.Wizard{
		Transposer: client,
		Store:      layout.NewStore(layoutPath(cfg)),
		In:         stdin,
		Out:        stdout,
		Logger:     logger,
	}
	if _, err := wz.Run(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return nil
}

// runScan handles the "ferryd scan" subcommand: a one-shot scan of all
// six connection points plus the charger/store classification. Logs go
// to stderr so that stdout stays a clean report in both formats.
func runScan(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, outputFmt string) error {
	logger := newLogger(stderr, slog.LevelWarn, "text")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// A dead bridge would otherwise read as "six empty sides", since
	// the scanner treats adapter errors as nothing-attached.
	client := newBridgeClient(cfg, logger)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("bridge unreachable: %w", err)
	}

	invs := scan.Scan(ctx, client, logger)
	rep := buildScanReport(invs)

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintln(stdout, "Connected inventories:")
	scan.WriteReport(stdout, invs)
	fmt.Fprintln(stdout)
	if rep.Charger != "" {
		fmt.Fprintf(stdout, "Charger: %s\n", rep.Charger)
	} else {
		fmt.Fprintln(stdout, "Charger: not found (name should contain \"charger\")")
	}
	if rep.Store != "" {
		fmt.Fprintf(stdout, "Store:   %s\n", rep.Store)
	} else {
		fmt.Fprintln(stdout, "Store:   not found (name should contain \"cube\" or \"energy\")")
	}
	return nil
}

// scanEntry is one row of the scan report, with the side rendered as
// its name rather than its numeric connection point key.
type scanEntry struct {
	Side  string `json:"side"`
	Slots int    `json:"slots"`
	Name  string `json:"name"`
}

// scanReport is the machine-readable scan result. Charger and Store
// are empty when classification found no match for the role.
type scanReport struct {
	Inventories []scanEntry `json:"inventories"`
	Charger     string      `json:"charger,omitempty"`
	Store       string      `json:"store,omitempty"`
}

func buildScanReport(invs map[transposer.Side]scan.Inventory) scanReport {
	var rep scanReport
	for _, side := range transposer.Sides {
		inv, ok := invs[side]
		if !ok {
			continue
		}
		rep.Inventories = append(rep.Inventories, scanEntry{
			Side:  side.String(),
			Slots: inv.Slots,
			Name:  inv.Name,
		})
	}
	source, sink := scan.Classify(invs, scan.IsCharger, scan.IsEnergyStore)
	if source != nil {
		rep.Charger = source.String()
	}
	if sink != nil {
		rep.Store = sink.String()
	}
	return rep
}

// runStatus handles the "ferryd status" subcommand: the saved layout
// plus a journal summary of the last 24 hours and the most recent
// cycles. It reads the same database the daemon writes, so it works
// while the daemon runs.
func runStatus(ctx context.Context, stdout io.Writer, configPath string, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	lay, ok := layout.NewStore(layoutPath(cfg)).Load()

	journalDB, store, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journalDB.Close()

	now := time.Now()
	sum, err := store.Summary(now.Add(-24*time.Hour), now)
	if err != nil {
		return fmt.Errorf("journal summary: %w", err)
	}
	recent, err := store.Recent(ctx, 10)
	if err != nil {
		return fmt.Errorf("journal recent: %w", err)
	}

	if outputFmt == "json" {
		rep := statusReport{SetupComplete: ok, Last24h: sum, Recent: recent}
		if ok {
			rep.Charger = lay.Source.String()
			rep.Store = lay.Sink.String()
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	writeStatusText(stdout, lay, ok, sum, recent)
	return nil
}

// statusReport is the machine-readable status output.
type statusReport struct {
	SetupComplete bool             `json:"setup_complete"`
	Charger       string           `json:"charger,omitempty"`
	Store         string           `json:"store,omitempty"`
	Last24h       *journal.Summary `json:"last_24h"`
	Recent        []journal.Record `json:"recent_cycles"`
}

// writeStatusText renders the human-readable status report.
func writeStatusText(w io.Writer, lay layout.Layout, ok bool, sum *journal.Summary, recent []journal.Record) {
	if ok {
		fmt.Fprintf(w, "Layout: %s\n", lay)
	} else {
		fmt.Fprintln(w, "Layout: setup incomplete (run `ferryd setup`)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Last 24 hours:")
	fmt.Fprintf(w, "  cycles:        %d\n", sum.TotalCycles)
	fmt.Fprintf(w, "  units moved:   %d\n", sum.UnitsMoved)
	fmt.Fprintf(w, "  failed cycles: %d\n", sum.FailedCycles)
	fmt.Fprintf(w, "  remediations:  %d\n", sum.Remediations)
	fmt.Fprintf(w, "  cooldowns:     %d\n", sum.Cooldowns)

	if len(recent) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recent cycles:")
	for _, rec := range recent {
		var flag string
		switch {
		case rec.Cooldown:
			flag = "  [cooldown]"
		case rec.Remediate:
			flag = "  [remediation]"
		}
		fmt.Fprintf(w, "  %s  %-17s moved=%d returned=%d%s\n",
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Outcome, rec.Moved, rec.Returned, flag)
	}
}

// newLogger builds the slog logger every subcommand logs through. The
// daemon honors the configured log_format; the one-shot subcommands
// stay on text, since their logs are read by a person at a terminal.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// configuredLogger rebuilds the logger with the level and format the
// loaded config asks for.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		level, _ = config.ParseLogLevel(cfg.LogLevel) // validated with the config
	}
	return newLogger(w, level, cfg.LogFormat)
}

// loadConfig resolves the config path (the -config value, or the
// search order), parses the file, and validates it. The returned path
// names the file actually loaded, for the startup log.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// newBridgeClient builds the bridge HTTP client from the configuration.
// The User-Agent identifies the ferryd build in the bridge's request
// log; the TLS opt-out covers self-signed https bridges.
func newBridgeClient(cfg *config.Config, logger *slog.Logger) *bridge.Client {
	opts := []httpkit.ClientOption{
		httpkit.WithUserAgent(buildinfo.UserAgent()),
	}
	if cfg.Bridge.InsecureSkipVerify {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}
	return bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Token, logger, opts...)
}

// layoutPath returns the device layout record path under the data
// directory. The in-game scripts read the same file, so the name is
// part of the external interface.
func layoutPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "layout.cfg")
}

// openJournal opens the cycle journal database under the data
// directory. WAL mode lets the status subcommand read while the
// daemon writes.
func openJournal(cfg *config.Config) (*sql.DB, *journal.Store, error) {
	path := filepath.Join(cfg.DataDir, "journal.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	store, err := journal.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return db, store, nil
}

// loopStats bridges the ferry loop's counters and build info to the
// MQTT publisher's [mqtt.StatsSource] interface. It holds only the
// loop pointer; every call takes a fresh lock-protected snapshot.
type loopStats struct {
	loop *ferry.Loop
}

func (s *loopStats) Uptime() time.Duration { return buildinfo.Uptime() }
func (s *loopStats) Version() string       { return buildinfo.Version }

// LastOutcome reports "none" until the first cycle finishes; the
// snapshot's zero outcome would otherwise read as a real one.
func (s *loopStats) LastOutcome() string {
	st := s.loop.Stats()
	if st.Cycles == 0 {
		return "none"
	}
	return st.LastOutcome.String()
}

func (s *loopStats) ConsecutiveFailures() int { return s.loop.Stats().Consecutive }
func (s *loopStats) SucceededOnce() bool      { return s.loop.Stats().SucceededOnce }
func (s *loopStats) CyclesTotal() uint64      { return s.loop.Stats().Cycles }
func (s *loopStats) UnitsMovedTotal() uint64  { return s.loop.Stats().UnitsMoved }
func (s *loopStats) LastCycleTime() time.Time { return s.loop.Stats().LastCycle }
