package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	healthhandler "collab-control-plane/backend/internal/health/handler"
	organizationhandler "collab-control-plane/backend/internal/organization/handler"
	organizationservice "collab-control-plane/backend/internal/organization/service"
	projecthandler "collab-control-plane/backend/internal/project/handler"
	projectservice "collab-control-plane/backend/internal/project/service"
	teamhandler "collab-control-plane/backend/internal/team/handler"
	teamservice "collab-control-plane/backend/internal/team/service"
	userhandler "collab-control-plane/backend/internal/user/handler"
	userservice "collab-control-plane/backend/internal/user/service"
)

// HealthCheckMethod is the full method name of the standard health check.
const HealthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps holds the services exposed over gRPC. A nil service is not registered.
type Deps struct {
	Projects      projectservice.ProjectService
	Organizations organizationservice.OrganizationService
	Teams         teamservice.TeamService
	Users         userservice.UserService
	// Health serves grpc.health.v1. If nil, the health service is not registered.
	Health *healthhandler.Server
	// Reflection enables server reflection. Set only outside production.
	Reflection bool
}

// ServiceNames lists the application services RegisterServices may register.
var ServiceNames = []string{
	projecthandler.ServiceName,
	organizationhandler.ServiceName,
	teamhandler.ServiceName,
	userhandler.ServiceName,
}

// PublicMethods returns the full method names that do not require a Bearer token.
func PublicMethods() map[string]bool {
	public := map[string]bool{HealthCheckMethod: true}
	for _, m := range userhandler.PublicMethods {
		public[m] = true
	}
	return public
}

// RegisterServices registers every configured service with s.
//
// Service → handler mapping:
//   - ProjectService      → internal/project/handler
//   - OrganizationService → internal/organization/handler
//   - TeamService         → internal/team/handler
//   - UserService         → internal/user/handler
//   - grpc.health.v1      → internal/health/handler
func RegisterServices(s *grpc.Server, deps Deps) {
	register(s, deps)
	if deps.Reflection {
		reflection.Register(s)
	}
}

func register(s grpc.ServiceRegistrar, deps Deps) {
	if deps.Projects != nil {
		projecthandler.NewServer(deps.Projects).Register(s)
	}
	if deps.Organizations != nil {
		organizationhandler.NewServer(deps.Organizations).Register(s)
	}
	if deps.Teams != nil {
		teamhandler.NewServer(deps.Teams).Register(s)
	}
	if deps.Users != nil {
		userhandler.NewServer(deps.Users).Register(s)
	}
	if deps.Health != nil {
		deps.Health.Register(s)
	}
}
