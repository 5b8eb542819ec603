package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/TAMATLT/ferryd/internal/config"
)

// StatsSource provides the readings behind the published sensors. The
// concrete adapter lives in main.go so this package stays decoupled
// from the ferry loop.
type StatsSource interface {
	// Uptime returns the process uptime.
	Uptime() time.Duration
	// Version returns the software version string.
	Version() string
	// LastOutcome names how the most recent cycle ended, or "none"
	// before the first cycle completes.
	LastOutcome() string
	// ConsecutiveFailures returns the current failure streak.
	ConsecutiveFailures() int
	// SucceededOnce reports whether any cycle has completed a full
	// round trip since startup.
	SucceededOnce() bool
	// CyclesTotal returns the number of cycles run since startup.
	CyclesTotal() uint64
	// UnitsMovedTotal returns the units ferried since startup.
	UnitsMovedTotal() uint64
	// LastCycleTime returns when the most recent cycle finished.
	LastCycleTime() time.Time
}

// Publisher owns the broker connection. It announces the device via
// HA discovery on every (re-)connect and pushes sensor states on a
// fixed interval.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	device     Device
	units      *DailyUnits
	stats      StatsSource
	logger     *slog.Logger

	base  string // ferryd/<device_name>
	avail string // base + /availability

	conn *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect; call [Publisher.Start].
func New(cfg config.MQTTConfig, instanceID string, units *DailyUnits, stats StatsSource, logger *slog.Logger) *Publisher {
	base := "ferryd/" + cfg.DeviceName
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		device:     NewDevice(instanceID, cfg.DeviceName),
		units:      units,
		stats:      stats,
		logger:     logger,
		base:       base,
		avail:      base + "/availability",
	}
}

// Start connects to the broker and blocks in the state publish loop
// until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	broker, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	conn, err := autopaho.NewConnection(ctx, p.clientConfig(ctx, broker))
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.conn = conn

	// autopaho retries on its own, so a slow broker only delays the
	// first state batch rather than failing startup.
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := conn.AwaitConnection(waitCtx); err != nil {
		p.logger.Warn("mqtt broker not reachable yet, retrying in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// clientConfig assembles the autopaho configuration: the will message
// marks the device offline if the process dies, and OnConnectionUp
// replays discovery so entities survive a broker restart.
func (p *Publisher) clientConfig(ctx context.Context, broker *url.URL) autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{broker},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.avail,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishDiscovery(ctx, cm)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "ferryd-" + p.cfg.DeviceName,
		},
	}

	if broker.Scheme == "mqtts" || broker.Scheme == "ssl" {
		cfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return cfg
}

// Stop marks the device offline and closes the connection. ctx bounds
// how long the farewell publish may take.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	p.publishAvailability(ctx, p.conn, "offline")
	return p.conn.Disconnect(ctx)
}

func (p *Publisher) stateTopic(entity string) string {
	return p.base + "/" + entity + "/state"
}

func (p *Publisher) discoveryTopic(component, entity string) string {
	return p.cfg.DiscoveryPrefix + "/" + component + "/" + p.cfg.DeviceName + "/" + entity + "/config"
}

// publishRetained sends one retained message through cm.
func (p *Publisher) publishRetained(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte, qos byte) error {
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  true,
	})
	return err
}

// --- Discovery ---

type sensorDef struct {
	suffix    string
	component string // "sensor" or "binary_sensor"
	config    SensorConfig
}

// sensors returns the discovery payload for every entity this
// instance publishes. Names are short: with HasEntityName set, HA
// prefixes the device name itself, and a name that repeats it would
// produce entity IDs like sensor.dock_dock_uptime.
func (p *Publisher) sensors() []sensorDef {
	def := func(component, suffix, name string) sensorDef {
		return sensorDef{
			suffix:    suffix,
			component: component,
			config: SensorConfig{
				Name:              name,
				ObjectID:          suffix,
				HasEntityName:     true,
				UniqueID:          p.instanceID + "_" + suffix,
				StateTopic:        p.stateTopic(suffix),
				AvailabilityTopic: p.avail,
				Device:            p.device,
			},
		}
	}

	uptime := def("sensor", "uptime", "Uptime")
	uptime.config.Icon = "mdi:clock-outline"
	uptime.config.EntityCategory = "diagnostic"

	version := def("sensor", "version", "Version")
	version.config.Icon = "mdi:tag"
	version.config.EntityCategory = "diagnostic"

	lastOutcome := def("sensor", "last_outcome", "Last Outcome")
	lastOutcome.config.Icon = "mdi:swap-horizontal"

	failures := def("sensor", "consecutive_failures", "Consecutive Failures")
	failures.config.Icon = "mdi:alert-circle-outline"
	failures.config.StateClass = "measurement"

	succeeded := def("binary_sensor", "succeeded_once", "Succeeded Once")
	succeeded.config.Icon = "mdi:check-circle-outline"
	succeeded.config.EntityCategory = "diagnostic"

	cycles := def("sensor", "cycles_total", "Cycles")
	cycles.config.Icon = "mdi:counter"
	cycles.config.StateClass = "total_increasing"
	cycles.config.UnitOfMeasurement = "cycles"

	moved := def("sensor", "units_moved", "Items Moved")
	moved.config.Icon = "mdi:package-variant-closed"
	moved.config.StateClass = "total_increasing"
	moved.config.UnitOfMeasurement = "items"

	today := def("sensor", "units_today", "Items Today")
	today.config.Icon = "mdi:counter"
	today.config.StateClass = "total_increasing"
	today.config.UnitOfMeasurement = "items"

	lastCycle := def("sensor", "last_cycle", "Last Cycle")
	lastCycle.config.Icon = "mdi:clock-check"
	lastCycle.config.EntityCategory = "diagnostic"

	return []sensorDef{
		uptime, version, lastOutcome, failures, succeeded,
		cycles, moved, today, lastCycle,
	}
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	for _, s := range p.sensors() {
		payload, err := json.Marshal(s.config)
		if err != nil {
			p.logger.Error("mqtt marshal discovery payload",
				"entity", s.suffix, "error", err)
			continue
		}

		topic := p.discoveryTopic(s.component, s.suffix)
		if err := p.publishRetained(ctx, cm, topic, payload, 1); err != nil {
			p.logger.Warn("mqtt discovery publish failed",
				"entity", s.suffix, "topic", topic, "error", err)
			continue
		}
		p.logger.Debug("mqtt discovery published",
			"entity", s.suffix, "topic", topic)
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if err := p.publishRetained(ctx, cm, p.avail, []byte(status), 1); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
		return
	}
	p.logger.Info("mqtt availability published", "status", status)
}

// --- State loop ---

func (p *Publisher) runLoop(ctx context.Context) {
	tick := time.NewTicker(time.Duration(p.cfg.PublishIntervalSec) * time.Second)
	defer tick.Stop()

	// First batch goes out right away; HA shows "unknown" until then.
	p.publishStates(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			p.publishStates(ctx)
		}
	}
}

func (p *Publisher) publishStates(ctx context.Context) {
	if p.conn == nil {
		return
	}

	states := p.stateValues()
	for entity, value := range states {
		if err := p.publishRetained(ctx, p.conn, p.stateTopic(entity), []byte(value), 0); err != nil {
			p.logger.Debug("mqtt state publish failed",
				"entity", entity, "error", err)
		}
	}
	p.logger.Debug("mqtt sensor states published", "entities", len(states))
}

// stateValues renders every sensor's current reading. Keys match the
// entity suffixes in sensors.
func (p *Publisher) stateValues() map[string]string {
	states := map[string]string{
		"uptime":               p.stats.Uptime().Truncate(time.Second).String(),
		"version":              p.stats.Version(),
		"last_outcome":         p.stats.LastOutcome(),
		"consecutive_failures": strconv.Itoa(p.stats.ConsecutiveFailures()),
		"cycles_total":         strconv.FormatUint(p.stats.CyclesTotal(), 10),
		"units_moved":          strconv.FormatUint(p.stats.UnitsMovedTotal(), 10),
	}

	if p.stats.SucceededOnce() {
		states["succeeded_once"] = "ON"
	} else {
		states["succeeded_once"] = "OFF"
	}

	moved, _, _ := p.units.Snapshot()
	states["units_today"] = strconv.FormatInt(moved, 10)

	if t := p.stats.LastCycleTime(); !t.IsZero() {
		states["last_cycle"] = t.Format(time.RFC3339)
	} else {
		states["last_cycle"] = "never"
	}

	return states
}
