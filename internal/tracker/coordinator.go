// Package tracker owns the tracking loop: it consumes satellite selections,
// propagates the selected satellite, keeps the rotor pointed at it and the
// receiver tuned to its doppler-corrected downlink.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/antenna-tracker/catalog"
	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
	"github.com/signalsfoundry/antenna-tracker/internal/selection"
	"github.com/signalsfoundry/antenna-tracker/model"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

// Rotor points the antenna.
type Rotor interface {
	Position(ctx context.Context) (model.Position, error)
	AbsolutePosition(ctx context.Context) (model.Position, error)
	SetPosition(ctx context.Context, pos model.Position) error
}

// Receiver tunes the radio.
type Receiver interface {
	SetFrequency(ctx context.Context, hz float64) error
}

// Notifier signals that the antenna reached a newly acquired satellite.
type Notifier interface {
	NotifyOnPosition(ctx context.Context)
}

// Metrics receives tracking events. *observability.TrackerCollector
// implements it.
type Metrics interface {
	RotorCommanded(azimuth, elevation float64)
	ReceiverTuned(frequencyHz, dopplerHz float64)
	Arrived()
	SetTracking(tracking bool)
	ObserveStep(d time.Duration)
}

// Config holds the coordinator's fixed parameters.
type Config struct {
	Station            model.GroundStation
	DefaultFrequencyHz float64

	// SelectionWait bounds each mailbox read; it is the loop's heartbeat.
	SelectionWait time.Duration
	// TrackThrottle is slept after every step that finds the satellite up.
	TrackThrottle time.Duration
	// HomingInterval is the position re-query cadence while homing.
	HomingInterval time.Duration
	// ArrivalInterval is the position re-query cadence after a move.
	ArrivalInterval time.Duration
	// PositionTolerance is how close, in degrees, a reported position must
	// be to count as reached.
	PositionTolerance float64
}

// DefaultConfig returns the cadence the tracker was designed around.
func DefaultConfig() Config {
	return Config{
		SelectionWait:     500 * time.Millisecond,
		TrackThrottle:     500 * time.Millisecond,
		HomingInterval:    time.Second,
		ArrivalInterval:   time.Second,
		PositionTolerance: core.QuantumDeg / 2,
	}
}

// ApplyDefaults replaces zero or negative fields with DefaultConfig values.
// TrackThrottle may be zero; only a negative throttle is replaced.
func (c Config) ApplyDefaults() Config {
	d := DefaultConfig()
	if c.SelectionWait <= 0 {
		c.SelectionWait = d.SelectionWait
	}
	if c.TrackThrottle < 0 {
		c.TrackThrottle = d.TrackThrottle
	}
	if c.HomingInterval <= 0 {
		c.HomingInterval = d.HomingInterval
	}
	if c.ArrivalInterval <= 0 {
		c.ArrivalInterval = d.ArrivalInterval
	}
	if c.PositionTolerance <= 0 {
		c.PositionTolerance = d.PositionTolerance
	}
	return c
}

// Deps are the coordinator's collaborators. Metrics, Clock and Logger are
// optional.
type Deps struct {
	Catalog    *catalog.Catalog
	Mailbox    *selection.Mailbox
	Propagator core.Propagator
	Rotor      Rotor
	Receiver   Receiver
	Notifier   Notifier
	Metrics    Metrics
	Clock      timectrl.Clock
	Logger     logging.Logger
}

// Coordinator runs the tracking loop. All of its state is confined to the
// goroutine calling Run; the only input from other goroutines is the
// mailbox.
type Coordinator struct {
	cfg Config

	catalog    *catalog.Catalog
	box        *selection.Mailbox
	propagator core.Propagator
	rotor      Rotor
	receiver   Receiver
	notifier   Notifier
	metrics    Metrics
	clock      timectrl.Clock
	log        logging.Logger

	onPhase func(Phase)

	state State
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithPhaseObserver registers fn to be called on every lifecycle phase
// change. fn runs on the coordinator goroutine and must not block.
func WithPhaseObserver(fn func(Phase)) Option {
	return func(c *Coordinator) { c.onPhase = fn }
}

// New validates deps and returns a coordinator ready to Run.
func New(cfg Config, deps Deps, opts ...Option) (*Coordinator, error) {
	var missing []error
	if deps.Catalog == nil {
		missing = append(missing, errors.New("catalog"))
	}
	if deps.Mailbox == nil {
		missing = append(missing, errors.New("mailbox"))
	}
	if deps.Propagator == nil {
		missing = append(missing, errors.New("propagator"))
	}
	if deps.Rotor == nil {
		missing = append(missing, errors.New("rotor"))
	}
	if deps.Receiver == nil {
		missing = append(missing, errors.New("receiver"))
	}
	if deps.Notifier == nil {
		missing = append(missing, errors.New("notifier"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("tracker: missing dependencies: %w", errors.Join(missing...))
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = timectrl.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Noop()
	}

	c := &Coordinator{
		cfg:        cfg.ApplyDefaults(),
		catalog:    deps.Catalog,
		box:        deps.Mailbox,
		propagator: deps.Propagator,
		rotor:      deps.Rotor,
		receiver:   deps.Receiver,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		log:        deps.Logger.With(logging.String("component", "tracker")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run homes the rotor and then runs the tracking loop until the shutdown
// sentinel arrives (nil), ctx is done (ctx.Err()), or a rotor or receiver
// command fails (the *hamlib.PeerError, wrapped).
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.setPhase(PhaseStopped)

	if err := c.Home(ctx); err != nil {
		return err
	}
	c.setPhase(PhaseRunning)
	c.log.Info(ctx, "tracking loop started", logging.Int("catalog_size", c.catalog.Len()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, ok := c.box.Get(ctx, c.cfg.SelectionWait)
		if ok {
			if req.Shutdown {
				c.log.Info(ctx, "shutdown requested; leaving tracking loop")
				return nil
			}
			if req.Name != c.state.Selection {
				c.log.Info(ctx, "satellite selected",
					logging.String("satellite", req.Name),
					logging.String("previous", c.state.Selection),
				)
			}
			c.state.Selection = req.Name
			continue
		}

		if c.state.Selection == "" {
			continue
		}
		if err := c.Step(ctx, c.state.Selection, c.clock.Now()); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return ctx.Err()
			}
			c.log.Error(ctx, "tracking step failed",
				logging.String("satellite", c.state.Selection),
				logging.String("mode", c.state.Mode().String()),
				logging.Error(err),
			)
			return err
		}
	}
}

// Home commands the rotor to the parking position and blocks until the
// controller reports it there. The last commanded position becomes home.
func (c *Coordinator) Home(ctx context.Context) error {
	c.setPhase(PhaseHoming)
	c.log.Info(ctx, "homing rotor")

	if err := c.rotor.SetPosition(ctx, model.Home); err != nil {
		return fmt.Errorf("home rotor: %w", err)
	}
	c.state.Commanded = model.Home
	c.metrics.RotorCommanded(model.Home.Azimuth, model.Home.Elevation)

	for {
		pos, err := c.rotor.Position(ctx)
		if err != nil {
			return fmt.Errorf("home rotor: %w", err)
		}
		if core.SamePosition(pos, model.Home, c.cfg.PositionTolerance) {
			c.log.Info(ctx, "rotor homed")
			return nil
		}
		c.log.Debug(ctx, "waiting for rotor to home",
			logging.Float64("azimuth", pos.Azimuth),
			logging.Float64("elevation", pos.Elevation),
		)
		if err := timectrl.Sleep(ctx, c.clock, c.cfg.HomingInterval); err != nil {
			return err
		}
	}
}

// Step performs one tracking decision for the named satellite at now.
// Only rotor and receiver failures are returned; an unknown name or a
// propagation failure leaves the state untouched.
func (c *Coordinator) Step(ctx context.Context, name string, now time.Time) (err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "tracker/step", attribute.String("satellite", name))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		c.metrics.ObserveStep(time.Since(start))
	}()

	rec, ok := c.catalog.Lookup(name)
	if !ok {
		c.log.Debug(ctx, "selection not in catalog", logging.String("satellite", name))
		return nil
	}

	obs, err := c.propagator.Observe(rec, c.cfg.Station, now)
	if err != nil {
		c.log.Warn(ctx, "propagation failed", logging.String("satellite", rec.Name), logging.Error(err))
		return nil
	}
	span.SetAttributes(
		attribute.Float64("azimuth", obs.Azimuth),
		attribute.Float64("elevation", obs.Elevation),
	)

	if obs.Elevation <= 0 {
		c.setTracking(ctx, rec.Name, false)
		return nil
	}
	c.setTracking(ctx, rec.Name, true)

	target := core.QuantizePosition(obs.Position())
	if target != c.state.Commanded {
		if err := c.point(ctx, name, target); err != nil {
			return err
		}
		if err := c.tune(ctx, rec, obs); err != nil {
			return err
		}
	}

	return timectrl.Sleep(ctx, c.clock, c.cfg.TrackThrottle)
}

// point moves the rotor to target, waits for it to get there and signals
// arrival once per acquired satellite.
func (c *Coordinator) point(ctx context.Context, name string, target model.Position) error {
	if err := c.rotor.SetPosition(ctx, target); err != nil {
		return fmt.Errorf("move rotor: %w", err)
	}
	c.state.Commanded = target
	c.metrics.RotorCommanded(target.Azimuth, target.Elevation)

	for {
		pos, err := c.rotor.AbsolutePosition(ctx)
		if err != nil {
			return fmt.Errorf("await rotor: %w", err)
		}
		if core.SamePosition(pos, target, c.cfg.PositionTolerance) {
			break
		}
		if err := timectrl.Sleep(ctx, c.clock, c.cfg.ArrivalInterval); err != nil {
			return err
		}
	}

	if name != c.state.Signaled {
		c.notifier.NotifyOnPosition(ctx)
		c.state.Signaled = name
		c.metrics.Arrived()
		c.log.Info(ctx, "antenna on target", logging.String("satellite", name))
	}
	return nil
}

// tune sets the receiver to the record's downlink plus doppler.
func (c *Coordinator) tune(ctx context.Context, rec model.SatelliteRecord, obs core.Observation) error {
	base, fromCatalog := core.BaseFrequencyHz(rec, c.cfg.DefaultFrequencyHz)
	doppler := obs.Doppler(base)
	freq := base + doppler

	if err := c.receiver.SetFrequency(ctx, freq); err != nil {
		return fmt.Errorf("tune receiver: %w", err)
	}
	c.metrics.ReceiverTuned(freq, doppler)
	c.log.Info(ctx, "tracking",
		logging.String("satellite", rec.Name),
		logging.Float64("azimuth", c.state.Commanded.Azimuth),
		logging.Float64("elevation", c.state.Commanded.Elevation),
		logging.Float64("frequency_hz", freq),
		logging.Float64("doppler_hz", doppler),
		logging.Bool("catalog_frequency", fromCatalog),
	)
	return nil
}

func (c *Coordinator) setTracking(ctx context.Context, name string, tracking bool) {
	if c.state.Tracking != tracking {
		if tracking {
			c.log.Info(ctx, "satellite above horizon", logging.String("satellite", name))
		} else {
			c.log.Info(ctx, "satellite below horizon", logging.String("satellite", name))
		}
	}
	c.state.Tracking = tracking
	c.metrics.SetTracking(tracking)
}

func (c *Coordinator) setPhase(p Phase) {
	if c.onPhase != nil {
		c.onPhase(p)
	}
}

// State returns a copy of the tracking state. It must only be called from
// the goroutine running the coordinator, or after Run has returned.
func (c *Coordinator) State() State {
	return c.state
}

type noopMetrics struct{}

func (noopMetrics) RotorCommanded(float64, float64) {}
func (noopMetrics) ReceiverTuned(float64, float64)  {}
func (noopMetrics) Arrived()                        {}
func (noopMetrics) SetTracking(bool)                {}
func (noopMetrics) ObserveStep(time.Duration)       {}
