package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Selection outcomes recorded by TrackerCollector.SelectionResult.
const (
	SelectionAccepted = "accepted"
	SelectionIgnored  = "ignored"
	SelectionShutdown = "shutdown"
)

// TrackerCollector bundles Prometheus metrics for the tracker and provides
// helpers to wire them into the gRPC health server and HTTP handlers. All
// recording methods are safe on a nil receiver.
type TrackerCollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	Selections    *prometheus.CounterVec
	RotorCommands prometheus.Counter
	ReceiverTunes prometheus.Counter
	Arrivals      prometheus.Counter
	StepDurations prometheus.Histogram

	Tracking           prometheus.Gauge
	CommandedAzimuth   prometheus.Gauge
	CommandedElevation prometheus.Gauge
	FrequencyHz        prometheus.Gauge
	DopplerHz          prometheus.Gauge
}

// NewTrackerCollector registers tracker Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewTrackerCollector(reg prometheus.Registerer) (*TrackerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_rpc_requests_total",
		Help: "Total number of handled control-plane RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "tracker_rpc_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tracker_rpc_request_duration_seconds",
		Help:    "Control-plane RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"service", "method"}), "tracker_rpc_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	selections, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_selections_total",
		Help: "Selection messages received by the listener, labeled by outcome.",
	}, []string{"result"}), "tracker_selections_total")
	if err != nil {
		return nil, err
	}
	rotorCommands, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_rotor_commands_total",
		Help: "Move commands sent to the rotor controller.",
	}), "tracker_rotor_commands_total")
	if err != nil {
		return nil, err
	}
	tunes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_receiver_tunes_total",
		Help: "Frequency commands sent to the receiver.",
	}), "tracker_receiver_tunes_total")
	if err != nil {
		return nil, err
	}
	arrivals, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_arrivals_total",
		Help: "Arrival notifications sent for newly acquired satellites.",
	}), "tracker_arrivals_total")
	if err != nil {
		return nil, err
	}
	steps, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_step_duration_seconds",
		Help:    "Duration of tracking steps, including rotor settling.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}), "tracker_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	gauges := make([]prometheus.Gauge, 0, 5)
	for _, opts := range []prometheus.GaugeOpts{
		{Name: "tracker_tracking", Help: "1 while the selected satellite is above the horizon."},
		{Name: "tracker_commanded_azimuth_degrees", Help: "Last azimuth commanded to the rotor."},
		{Name: "tracker_commanded_elevation_degrees", Help: "Last elevation commanded to the rotor."},
		{Name: "tracker_receiver_frequency_hz", Help: "Last doppler-corrected frequency sent to the receiver."},
		{Name: "tracker_doppler_shift_hz", Help: "Doppler shift applied to the last tune command."},
	} {
		g, err := registerGauge(reg, prometheus.NewGauge(opts), opts.Name)
		if err != nil {
			return nil, err
		}
		gauges = append(gauges, g)
	}

	return &TrackerCollector{
		gatherer:           gatherer,
		RPCRequests:        requests,
		RPCDurations:       durations,
		Selections:         selections,
		RotorCommands:      rotorCommands,
		ReceiverTunes:      tunes,
		Arrivals:           arrivals,
		StepDurations:      steps,
		Tracking:           gauges[0],
		CommandedAzimuth:   gauges[1],
		CommandedElevation: gauges[2],
		FrequencyHz:        gauges[3],
		DopplerHz:          gauges[4],
	}, nil
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *TrackerCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, code).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SelectionResult counts one selection message by outcome.
func (c *TrackerCollector) SelectionResult(result string) {
	if c == nil || c.Selections == nil {
		return
	}
	c.Selections.WithLabelValues(result).Inc()
}

// RotorCommanded records a move command.
func (c *TrackerCollector) RotorCommanded(azimuth, elevation float64) {
	if c == nil {
		return
	}
	if c.RotorCommands != nil {
		c.RotorCommands.Inc()
	}
	if c.CommandedAzimuth != nil {
		c.CommandedAzimuth.Set(azimuth)
	}
	if c.CommandedElevation != nil {
		c.CommandedElevation.Set(elevation)
	}
}

// ReceiverTuned records a tune command.
func (c *TrackerCollector) ReceiverTuned(frequencyHz, dopplerHz float64) {
	if c == nil {
		return
	}
	if c.ReceiverTunes != nil {
		c.ReceiverTunes.Inc()
	}
	if c.FrequencyHz != nil {
		c.FrequencyHz.Set(frequencyHz)
	}
	if c.DopplerHz != nil {
		c.DopplerHz.Set(dopplerHz)
	}
}

// Arrived records an arrival notification.
func (c *TrackerCollector) Arrived() {
	if c == nil || c.Arrivals == nil {
		return
	}
	c.Arrivals.Inc()
}

// SetTracking flags whether the selected satellite is above the horizon.
func (c *TrackerCollector) SetTracking(tracking bool) {
	if c == nil || c.Tracking == nil {
		return
	}
	v := 0.0
	if tracking {
		v = 1
	}
	c.Tracking.Set(v)
}

// ObserveStep records the duration of one tracking step.
func (c *TrackerCollector) ObserveStep(d time.Duration) {
	if c == nil || c.StepDurations == nil {
		return
	}
	c.StepDurations.Observe(d.Seconds())
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
