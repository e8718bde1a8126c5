package observability

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

func TestRequestIDInterceptorUsesInboundID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(logging.Noop())
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc-123"))

	var gotID string
	var gotLogger logging.Logger
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) {
			gotID = logging.RequestIDFromContext(ctx)
			gotLogger = logging.LoggerFromContext(ctx)
			return nil, nil
		})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if gotID != "abc-123" {
		t.Fatalf("request id = %q, want abc-123", gotID)
	}
	if gotLogger == nil {
		t.Fatal("expected a request logger on the context")
	}
}

func TestRequestIDInterceptorGeneratesID(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(nil)
	var gotID string
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"},
		func(ctx context.Context, req any) (any, error) {
			gotID = logging.RequestIDFromContext(ctx)
			return nil, nil
		})
	if gotID == "" {
		t.Fatal("expected a generated request id")
	}
}
