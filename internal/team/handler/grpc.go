// Package handler exposes TeamService over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/envelope"
	"collab-control-plane/backend/internal/server/rpc"
	"collab-control-plane/backend/internal/team/domain"
	"collab-control-plane/backend/internal/team/service"
)

// ServiceName is the gRPC service name.
const ServiceName = "collab.team.v1.TeamService"

// Server implements TeamService.
type Server struct {
	svc service.TeamService
}

// NewServer returns a Server backed by svc.
func NewServer(svc service.TeamService) *Server {
	return &Server{svc: svc}
}

// Register adds the service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	rpc.Register(r, ServiceName,
		rpc.Method{Name: "CreateTeam", Handler: s.CreateTeam},
		rpc.Method{Name: "AddMember", Handler: s.AddMember},
		rpc.Method{Name: "GetTeam", Handler: s.GetTeam},
	)
}

// CreateTeam takes orgId and name.
func (s *Server) CreateTeam(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	t, err := s.svc.CreateTeam(ctx, rpc.String(req, "orgId"), rpc.String(req, "name"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(teamPayload(t), "team created successfully"), nil
}

// AddMember takes teamId, memberId and optional asRoleOf.
func (s *Server) AddMember(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	t, err := s.svc.AddMember(ctx, rpc.String(req, "teamId"), rpc.String(req, "memberId"), rpc.String(req, "asRoleOf"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(teamPayload(t), "Member successfully added in to team"), nil
}

// GetTeam takes teamId.
func (s *Server) GetTeam(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	t, err := s.svc.GetTeam(ctx, rpc.String(req, "teamId"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(teamPayload(t), "team fetched successfully"), nil
}

func teamPayload(t *domain.Team) map[string]interface{} {
	members := make([]interface{}, 0, len(t.Members))
	for _, m := range t.Members.OfKind(membership.KindUser) {
		members = append(members, map[string]interface{}{"user": m.Peer.ID, "role": string(m.Role)})
	}
	return map[string]interface{}{
		"id":        t.ID,
		"orgId":     t.OrgID,
		"name":      t.Name,
		"members":   members,
		"projects":  rpc.Strings(t.Projects),
		"createdAt": rpc.Time(t.CreatedAt),
	}
}
