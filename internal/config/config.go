// Package config loads the tracker's startup configuration: a YAML file,
// then TRACKER_* environment overrides, then defaults for anything unset.
package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
	"github.com/signalsfoundry/antenna-tracker/internal/selection"
	"github.com/signalsfoundry/antenna-tracker/model"
)

// Defaults for a single-station deployment.
const (
	DefaultRotorAddr          = "localhost:4533"
	DefaultReceiverAddr       = "localhost:7356"
	DefaultListenAddr         = selection.DefaultAddr
	DefaultNotifierAddr       = "localhost:7778"
	DefaultNotifierPayload    = "ON_POSITION"
	DefaultFrequencyHz        = 255_500_000
	DefaultCatalogPath        = "satdata.yaml"
	DefaultMetricsAddr        = ":9090"
	DefaultHealthAddr         = ":50051"
	DefaultHandshakeTimeout   = 5 * time.Second
	DefaultSelectionWait      = 500 * time.Millisecond
	DefaultTrackThrottle      = 500 * time.Millisecond
	DefaultHomingInterval     = time.Second
	DefaultArrivalInterval    = time.Second
	DefaultPositionTolerance  = 0.25
	DefaultElementCacheSize   = 64
	defaultStationLatitude    = 43.316301
	defaultStationLongitude   = -1.975862
	defaultStationAltitudeMtr = 20
)

// Endpoint is a network peer address.
type Endpoint struct {
	Addr string `yaml:"addr"`
}

// Notifier configures the arrival datagram.
type Notifier struct {
	Addr    string `yaml:"addr"`
	Payload string `yaml:"payload"`
}

// Timing groups the loop cadences. Durations use Go syntax ("500ms").
type Timing struct {
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	IOTimeout         time.Duration `yaml:"io_timeout"`
	SelectionWait     time.Duration `yaml:"selection_wait"`
	TrackThrottle     time.Duration `yaml:"track_throttle"`
	HomingInterval    time.Duration `yaml:"homing_interval"`
	ArrivalInterval   time.Duration `yaml:"arrival_interval"`
	PositionTolerance float64       `yaml:"position_tolerance"`
}

// Config is the complete startup configuration.
type Config struct {
	Station            model.GroundStation `yaml:"station"`
	Rotor              Endpoint            `yaml:"rotor"`
	Receiver           Endpoint            `yaml:"receiver"`
	Listener           Endpoint            `yaml:"listener"`
	Notifier           Notifier            `yaml:"notifier"`
	DefaultFrequencyHz float64             `yaml:"default_frequency_hz"`
	Catalog            string              `yaml:"catalog"`
	ElementCacheSize   int                 `yaml:"element_cache_size"`

	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`

	Timing  Timing                      `yaml:"timing"`
	Log     logging.Config              `yaml:"log"`
	Tracing observability.TracingConfig `yaml:"tracing"`
}

// Default returns a configuration with every field at its default.
func Default() Config {
	return Config{}.ApplyDefaults()
}

// Load reads path (if non-empty), applies environment overrides and
// defaults, and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config %q: %w", path, err)
		}
		defer f.Close()
		if cfg, err = Decode(f); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	cfg, err := cfg.ApplyEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses YAML configuration. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields. An all-zero station counts as unset.
func (c Config) ApplyDefaults() Config {
	if c.Station == (model.GroundStation{}) {
		c.Station = model.GroundStation{
			Latitude:  defaultStationLatitude,
			Longitude: defaultStationLongitude,
			Altitude:  defaultStationAltitudeMtr,
		}
	}
	if c.Rotor.Addr == "" {
		c.Rotor.Addr = DefaultRotorAddr
	}
	if c.Receiver.Addr == "" {
		c.Receiver.Addr = DefaultReceiverAddr
	}
	if c.Listener.Addr == "" {
		c.Listener.Addr = DefaultListenAddr
	}
	if c.Notifier.Addr == "" {
		c.Notifier.Addr = DefaultNotifierAddr
	}
	if c.Notifier.Payload == "" {
		c.Notifier.Payload = DefaultNotifierPayload
	}
	if c.DefaultFrequencyHz <= 0 {
		c.DefaultFrequencyHz = DefaultFrequencyHz
	}
	if c.Catalog == "" {
		c.Catalog = DefaultCatalogPath
	}
	if c.ElementCacheSize <= 0 {
		c.ElementCacheSize = DefaultElementCacheSize
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.HealthAddr == "" {
		c.HealthAddr = DefaultHealthAddr
	}

	t := &c.Timing
	if t.HandshakeTimeout <= 0 {
		t.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if t.IOTimeout < 0 {
		t.IOTimeout = 0
	}
	if t.SelectionWait <= 0 {
		t.SelectionWait = DefaultSelectionWait
	}
	if t.TrackThrottle <= 0 {
		t.TrackThrottle = DefaultTrackThrottle
	}
	if t.HomingInterval <= 0 {
		t.HomingInterval = DefaultHomingInterval
	}
	if t.ArrivalInterval <= 0 {
		t.ArrivalInterval = DefaultArrivalInterval
	}
	if t.PositionTolerance <= 0 {
		t.PositionTolerance = DefaultPositionTolerance
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	c.Tracing = c.Tracing.ApplyDefaults()
	return c
}

// ApplyEnv overrides fields from TRACKER_* variables read through lookup.
// Variables that are present but unparsable are reported.
func (c Config) ApplyEnv(lookup func(string) (string, bool)) (Config, error) {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	float("TRACKER_STATION_LAT", &c.Station.Latitude)
	float("TRACKER_STATION_LON", &c.Station.Longitude)
	float("TRACKER_STATION_ALT", &c.Station.Altitude)
	str("TRACKER_ROTOR_ADDR", &c.Rotor.Addr)
	str("TRACKER_RECEIVER_ADDR", &c.Receiver.Addr)
	str("TRACKER_LISTEN_ADDR", &c.Listener.Addr)
	str("TRACKER_NOTIFIER_ADDR", &c.Notifier.Addr)
	str("TRACKER_NOTIFIER_PAYLOAD", &c.Notifier.Payload)
	float("TRACKER_DEFAULT_FREQUENCY_HZ", &c.DefaultFrequencyHz)
	str("TRACKER_CATALOG", &c.Catalog)
	str("TRACKER_METRICS_ADDR", &c.MetricsAddr)
	str("TRACKER_HEALTH_ADDR", &c.HealthAddr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)
	boolean("TRACKER_TRACING_ENABLED", &c.Tracing.Enabled)
	str("TRACKER_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("TRACKER_OTLP_ENDPOINT", &c.Tracing.Endpoint)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("environment: %w", errors.Join(errs...))
	}
	return c, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		errs = append(errs, fmt.Errorf("station.latitude %v out of range [-90, 90]", c.Station.Latitude))
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		errs = append(errs, fmt.Errorf("station.longitude %v out of range [-180, 180]", c.Station.Longitude))
	}
	for _, ep := range []struct{ name, addr string }{
		{"rotor.addr", c.Rotor.Addr},
		{"receiver.addr", c.Receiver.Addr},
		{"listener.addr", c.Listener.Addr},
		{"notifier.addr", c.Notifier.Addr},
	} {
		if _, _, err := net.SplitHostPort(ep.addr); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", ep.name, ep.addr, err))
		}
	}
	if c.DefaultFrequencyHz <= 0 {
		errs = append(errs, fmt.Errorf("default_frequency_hz must be positive, got %v", c.DefaultFrequencyHz))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
