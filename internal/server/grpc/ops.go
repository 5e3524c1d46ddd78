// Package grpcserver runs the operations listener: the standard gRPC health
// service driven by database reachability.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "forksy.Auth"

// Pinger checks a dependency, typically the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ops is the gRPC operations server.
type Ops struct {
	log    *zap.Logger
	srv    *grpc.Server
	health *health.Server
	db     Pinger
}

// NewOps builds the server with logging and recovery interceptors.
// reflect enables server reflection for grpcurl in development.
func NewOps(log *zap.Logger, db Pinger, reflect bool, opts ...grpc.ServerOption) *Ops {
	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if reflect {
		reflection.Register(s)
	}
	o := &Ops{log: log, srv: s, health: hs, db: db}
	o.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return o
}

func (o *Ops) set(st healthpb.HealthCheckResponse_ServingStatus) {
	o.health.SetServingStatus("", st)
	o.health.SetServingStatus(ServiceName, st)
}

// Probe pings the database once and updates the serving status.
func (o *Ops) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := o.db.Ping(ctx); err != nil {
		o.log.Warn("health probe failed", zap.Error(err))
		o.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	o.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch probes every interval until ctx is done.
func (o *Ops) Watch(ctx context.Context, every time.Duration) {
	o.Probe(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Probe(ctx)
		}
	}
}

// Serve accepts connections on lis until Stop.
func (o *Ops) Serve(lis net.Listener) error { return o.srv.Serve(lis) }

// Stop marks the server as shutting down and stops gracefully,
// forcing the stop after timeout.
func (o *Ops) Stop(timeout time.Duration) {
	o.health.Shutdown()
	done := make(chan struct{})
	go func() {
		o.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.srv.Stop()
	}
}
