package observability

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

func startHealth(t *testing.T, collector *TrackerCollector) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	h := NewHealthServer(collector, logging.Noop())
	done := make(chan error, 1)
	go func() { done <- h.Serve(lis) }()
	t.Cleanup(func() {
		h.Stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Stop")
		}
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return h, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthServerStartsNotServing(t *testing.T) {
	_, client := startHealth(t, nil)
	if got := checkStatus(t, client, HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", got)
	}
}

func TestHealthServerSetServing(t *testing.T) {
	h, client := startHealth(t, nil)

	h.SetServing(true)
	for _, svc := range []string{HealthService, ""} {
		if got := checkStatus(t, client, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("status(%q) = %v, want SERVING", svc, got)
		}
	}

	h.SetServing(false)
	if got := checkStatus(t, client, HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v, want NOT_SERVING", got)
	}
}

func TestHealthServerRecordsRPCMetrics(t *testing.T) {
	collector, err := NewTrackerCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewTrackerCollector: %v", err)
	}
	_, client := startHealth(t, collector)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "check-1")
	if _, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService}); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("Health", "Check", "OK")); got != 1 {
		t.Fatalf("tracker_rpc_requests_total = %v, want 1", got)
	}
}
