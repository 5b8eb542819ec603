// Package config loads and validates the ferryd YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths lists where a config file is looked for when the
// -config flag is absent: the working directory first, then the user's
// ~/.config/ferryd, then /etc/ferryd.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ferryd", "config.yaml"))
	}
	return append(paths, "/etc/ferryd/config.yaml")
}

// FindConfig resolves which config file to use. A non-empty explicit
// path (the -config flag) must exist; otherwise the first hit in
// [DefaultSearchPaths] wins.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, candidate := range DefaultSearchPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all ferryd configuration.
type Config struct {
	Bridge   BridgeConfig `yaml:"bridge"`
	Ferry    FerryConfig  `yaml:"ferry"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	Alerts   AlertsConfig `yaml:"alerts"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`

	// LogFormat selects the slog handler: "text" or "json".
	// Default: "text".
	LogFormat string `yaml:"log_format"`
}

// BridgeConfig defines the in-game bridge connection settings.
type BridgeConfig struct {
	// URL is the base URL of the bridge HTTP API
	// (e.g., "http://127.0.0.1:8384").
	URL string `yaml:"url"`

	// Token is the bearer token for bridge API calls. Supports
	// environment variable expansion via the config loader
	// (e.g., ${FERRYD_BRIDGE_TOKEN}).
	Token string `yaml:"token"`

	// InsecureSkipVerify skips TLS certificate verification for
	// https bridges with self-signed certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// FerryConfig defines what the transfer loop moves and from where.
// The failure thresholds and wait intervals are fixed on purpose; the
// loop's escalation behavior is not a tuning knob.
type FerryConfig struct {
	// Slot is the 1-based charger slot the tracked item lives in.
	// Default: 1.
	Slot int `yaml:"slot"`

	// TrackedItemID matches the item by its exact registry ID
	// (e.g., "mod:energycube").
	TrackedItemID string `yaml:"tracked_item_id"`

	// TrackedLabelWords is the label fallback: every word must appear
	// in the item label, case-insensitively.
	TrackedLabelWords []string `yaml:"tracked_label_words"`
}

// MQTTConfig defines the optional Home Assistant MQTT telemetry.
type MQTTConfig struct {
	// Broker is the MQTT broker URL (e.g., "mqtt://10.0.0.5:1883" or
	// "mqtts://broker.example.com:8883").
	Broker string `yaml:"broker"`

	Username string `yaml:"username"`

	// Password may reference the environment, e.g. ${MQTT_PASSWORD}.
	Password string `yaml:"password"`

	// DeviceName is the HA device slug. It appears in topic paths, so
	// keep it short and hostname-safe.
	DeviceName string `yaml:"device_name"`

	// DiscoveryPrefix is the HA MQTT discovery prefix.
	// Default: "homeassistant".
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// PublishIntervalSec is how often sensor states are pushed.
	// Default: 60.
	PublishIntervalSec int `yaml:"publish_interval_sec"`
}

// Configured reports whether MQTT telemetry should be started.
func (c MQTTConfig) Configured() bool {
	return c.Broker != "" && c.DeviceName != ""
}

// AlertsConfig defines optional email alerts for transfer cooldowns.
type AlertsConfig struct {
	// SMTP configures the outbound mail server.
	SMTP SMTPConfig `yaml:"smtp"`

	// From is the From address for alert mail
	// (e.g., "ferryd <ferryd@example.com>").
	From string `yaml:"from"`

	// To is the recipient address.
	To string `yaml:"to"`

	// QuietPeriodMin is the minimum gap between alert mails in
	// minutes. Default: 30.
	QuietPeriodMin int `yaml:"quiet_period_min"`
}

// Configured reports whether alert mail can be sent.
func (c AlertsConfig) Configured() bool {
	return c.SMTP.Host != "" && c.From != "" && c.To != ""
}

// SMTPConfig holds the outbound mail server parameters.
type SMTPConfig struct {
	// Host is the mail server to submit through (e.g. "smtp.gmail.com").
	Host string `yaml:"host"`

	// Port defaults to 587, the submission port with STARTTLS.
	Port int `yaml:"port"`

	Username string `yaml:"username"`

	// Password may reference the environment, e.g. ${SMTP_PASSWORD}.
	Password string `yaml:"password"`

	// StartTLS upgrades the plain connection after EHLO. It defaults
	// to true; switch it off for implicit-TLS servers on port 465.
	StartTLS bool `yaml:"starttls"`
}

// Load parses the YAML file at path into a Config. ${VAR} references
// are expanded from the environment before parsing so secrets can stay
// out of the file. Defaults are filled in; Validate is the caller's
// job.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fillDefaults()
	return cfg, nil
}

// Default returns the configuration ferryd runs with when no file
// overrides anything: a local bridge, both optional surfaces off.
func Default() *Config {
	cfg := &Config{Bridge: BridgeConfig{URL: "http://127.0.0.1:8384"}}
	cfg.fillDefaults()
	return cfg
}

func (c *Config) fillDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Ferry.Slot == 0 {
		c.Ferry.Slot = 1
	}
	if c.Ferry.TrackedItemID == "" && len(c.Ferry.TrackedLabelWords) == 0 {
		c.Ferry.TrackedItemID = "mod:energycube"
		c.Ferry.TrackedLabelWords = []string{"energy", "cube"}
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if c.MQTT.PublishIntervalSec == 0 {
		c.MQTT.PublishIntervalSec = 60
	}
	if c.Alerts.SMTP.Host != "" {
		if c.Alerts.SMTP.Port == 0 {
			c.Alerts.SMTP.Port = 587
		}
		if !c.Alerts.SMTP.StartTLS && c.Alerts.SMTP.Port != 465 {
			c.Alerts.SMTP.StartTLS = true
		}
	}
	if c.Alerts.QuietPeriodMin == 0 {
		c.Alerts.QuietPeriodMin = 30
	}
}

// Validate checks the loaded configuration for the kind of problem a
// typo would cause and reports the first one found.
func (c *Config) Validate() error {
	if c.Bridge.URL == "" {
		return fmt.Errorf("bridge.url is required")
	}
	if c.Ferry.Slot < 1 {
		return fmt.Errorf("ferry.slot must be >= 1, got %d", c.Ferry.Slot)
	}
	if c.Ferry.TrackedItemID == "" && len(c.Ferry.TrackedLabelWords) == 0 {
		return fmt.Errorf("ferry needs tracked_item_id or tracked_label_words")
	}
	if c.MQTT.Configured() && c.MQTT.PublishIntervalSec < 1 {
		return fmt.Errorf("mqtt.publish_interval_sec must be >= 1, got %d", c.MQTT.PublishIntervalSec)
	}
	if c.Alerts.SMTP.Host != "" {
		if c.Alerts.SMTP.Port < 1 || c.Alerts.SMTP.Port > 65535 {
			return fmt.Errorf("alerts.smtp.port %d out of range (1-65535)", c.Alerts.SMTP.Port)
		}
		if c.Alerts.From == "" || c.Alerts.To == "" {
			return fmt.Errorf("alerts.from and alerts.to are required when alerts.smtp.host is set")
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format must be %q or %q, got %q", "text", "json", c.LogFormat)
	}
	return nil
}
