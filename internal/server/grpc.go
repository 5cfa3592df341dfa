// Package server assembles the gRPC server for the credential control plane.
package server

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"credential-control-plane/backend/internal/audit"
	"credential-control-plane/backend/internal/server/interceptors"
)

// Pinger reports storage reachability for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds the server's dependencies.
type Deps struct {
	// Auditor records an audit event per RPC. If nil, RPCs are not audited.
	Auditor audit.Recorder
	// DB is pinged by the readiness watcher. If nil, health always reports serving.
	DB Pinger
}

// Server wraps a grpc.Server together with its health service.
type Server struct {
	GRPC   *grpc.Server
	health *health.Server
	db     Pinger
}

// skip health checks in the audit trail, they fire constantly
var auditSkipMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// New builds a grpc.Server with OTel instrumentation, logging and audit
// interceptors, and the standard grpc.health.v1 service registered.
func New(deps Deps) *Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(),
			interceptors.AuditUnary(deps.Auditor, auditSkipMethods),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Server{GRPC: s, health: hs, db: deps.DB}
}

// WatchHealth periodically pings the database and flips the health service
// between SERVING and NOT_SERVING. Blocks until ctx is cancelled. No-op when
// the server has no DB.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	if s.db == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkOnce(ctx)
		}
	}
}

func (s *Server) checkOnce(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		log.Printf("health: database ping failed: %v", err)
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}
