// Package handler reports readiness through the standard grpc.health.v1 service.
package handler

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks the store is reachable. store.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the authorization policy evaluates. *rbac.Gate implements it.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wraps a grpc health server whose status follows the last readiness check.
type Server struct {
	health   *health.Server
	pinger   Pinger
	policy   PolicyChecker
	services []string
	log      *zap.Logger
}

// NewServer returns a Server. pinger and policy may be nil; then that check is skipped.
// services are the service names whose status is set alongside the overall "" entry.
func NewServer(pinger Pinger, policy PolicyChecker, log *zap.Logger, services ...string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		health:   health.NewServer(),
		pinger:   pinger,
		policy:   policy,
		services: services,
		log:      log,
	}
}

// Register adds grpc.health.v1.Health to r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Check runs every readiness check, updates the serving status and returns the combined error.
func (s *Server) Check(ctx context.Context) error {
	var err error
	if s.pinger != nil {
		if perr := s.pinger.Ping(ctx); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	if s.policy != nil {
		if perr := s.policy.HealthCheck(ctx); perr != nil {
			err = multierr.Append(err, perr)
		}
	}
	st := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.log.Warn("readiness check failed", zap.Error(err))
	}
	s.set(st)
	return err
}

// Run checks every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		_ = s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Shutdown marks every service NOT_SERVING and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	for _, name := range s.services {
		s.health.SetServingStatus(name, st)
	}
}
