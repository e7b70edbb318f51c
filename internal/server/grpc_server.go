package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/luvo/internal/app"
)

// ServiceName is the name probes ask the health service about.
const ServiceName = "luvo.api"

// OpsServer is the internal gRPC listener: standard health checking
// backed by Checker, plus reflection for grpcurl.
type OpsServer struct {
	appCtx   *app.AppContext
	checker  *Checker
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
}

func NewOpsServer(appCtx *app.AppContext, registrars ...Registrar) *OpsServer {
	s := &OpsServer{
		appCtx:   appCtx,
		checker:  NewChecker(appCtx),
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		interval: 15 * time.Second,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	for _, r := range registrars {
		r.Register(s.grpc)
	}
	// enable reflection for easier debugging with grpcurl
	reflection.Register(s.grpc)
	return s
}

// Serve listens on the configured address and refreshes the health status
// until ctx is done. It returns when the server stops.
func (s *OpsServer) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.appCtx.Config.GRPC.Host, s.appCtx.Config.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

func (s *OpsServer) ServeListener(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)
	go s.watch(ctx)
	s.appCtx.Logger.Info("ops grpc listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Refresh runs the dependency checks once and publishes the result.
func (s *OpsServer) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if _, ok := s.checker.Check(ctx); !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *OpsServer) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh(ctx)
		}
	}
}

// Stop marks the server as not serving and drains open RPCs.
func (s *OpsServer) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
