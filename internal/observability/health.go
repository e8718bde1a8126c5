package observability

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

// HealthService is the service name the tracker reports under in the
// standard grpc.health.v1 protocol. The empty service name mirrors it.
const HealthService = "tracker"

// HealthServer exposes tracker readiness over gRPC health checking. It
// reports NOT_SERVING until the rotor has homed and the run loop started.
type HealthServer struct {
	srv    *grpc.Server
	health *health.Server
	log    logging.Logger
}

// NewHealthServer builds the gRPC server with tracing and metrics wired in.
// collector may be nil.
func NewHealthServer(collector *TrackerCollector, log logging.Logger) *HealthServer {
	if log == nil {
		log = logging.Noop()
	}
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnaryServerInterceptor(log),
			collector.UnaryServerInterceptor(),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &HealthServer{srv: srv, health: hs, log: log}
	h.SetServing(false)
	return h
}

// SetServing flips the reported status of HealthService and the overall
// server.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(HealthService, status)
	h.health.SetServingStatus("", status)
}

// Serve blocks serving on lis until Stop is called.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.log.Info(context.Background(), "serving gRPC health", logging.String("addr", lis.Addr().String()))
	if err := h.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks everything NOT_SERVING and stops the server gracefully.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.srv.GracefulStop()
}
