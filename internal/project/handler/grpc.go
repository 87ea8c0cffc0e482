// Package handler exposes ProjectService over gRPC.
package handler

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-control-plane/backend/internal/cascade"
	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/envelope"
	"collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/project/service"
	"collab-control-plane/backend/internal/server/rpc"
)

// ServiceName is the gRPC service name.
const ServiceName = "collab.project.v1.ProjectService"

const (
	msgCreated       = "project created successfully"
	msgUpdated       = "project details updated successfully"
	msgDeleted       = "Project deleted successfully"
	msgMemberAdded   = "Member successfully added in to project"
	msgTeamAdded     = "Team '%s' and its members added to the project"
	msgMemberRemoved = "Member removed from project"
	msgFetched       = "project fetched successfully"
)

// Server implements ProjectService.
type Server struct {
	svc service.ProjectService
}

// NewServer returns a Server backed by svc.
func NewServer(svc service.ProjectService) *Server {
	return &Server{svc: svc}
}

// Register adds the service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	rpc.Register(r, ServiceName,
		rpc.Method{Name: "CreateProject", Handler: s.CreateProject},
		rpc.Method{Name: "UpdateProject", Handler: s.UpdateProject},
		rpc.Method{Name: "DeleteProject", Handler: s.DeleteProject},
		rpc.Method{Name: "AddMember", Handler: s.AddMember},
		rpc.Method{Name: "AddTeam", Handler: s.AddTeam},
		rpc.Method{Name: "RemoveMember", Handler: s.RemoveMember},
		rpc.Method{Name: "GetProject", Handler: s.GetProject},
	)
}

// CreateProject takes orgId, projectName and description.
func (s *Server) CreateProject(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	p, err := s.svc.CreateProject(ctx, rpc.String(req, "orgId"), rpc.String(req, "projectName"), rpc.String(req, "description"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(projectPayload(p), msgCreated), nil
}

// UpdateProject takes projectId, projectName and description.
func (s *Server) UpdateProject(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	p, err := s.svc.UpdateProject(ctx, rpc.String(req, "projectId"), rpc.String(req, "projectName"), rpc.String(req, "description"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(projectPayload(p), msgUpdated), nil
}

// DeleteProject takes projectId.
func (s *Server) DeleteProject(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	if err := s.svc.DeleteProject(ctx, rpc.String(req, "projectId")); err != nil {
		return nil, err
	}
	return envelope.OK(map[string]interface{}{}, msgDeleted), nil
}

// AddMember takes projectId, memberId and optional asRoleOf.
func (s *Server) AddMember(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	p, err := s.svc.AddMember(ctx, rpc.String(req, "projectId"), rpc.String(req, "memberId"), rpc.String(req, "asRoleOf"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(projectPayload(p), msgMemberAdded), nil
}

// AddTeam takes projectId, teamId and optional asRoleOf.
func (s *Server) AddTeam(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	res, err := s.svc.AddTeam(ctx, rpc.String(req, "projectId"), rpc.String(req, "teamId"), rpc.String(req, "asRoleOf"))
	if err != nil {
		return nil, err
	}
	payload := projectPayload(res.Project)
	payload["addedMembers"] = rpc.Strings(res.Added)
	return envelope.OK(payload, fmt.Sprintf(msgTeamAdded, teamName(res))), nil
}

// RemoveMember takes projectId and memberId.
func (s *Server) RemoveMember(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	p, err := s.svc.RemoveMember(ctx, rpc.String(req, "projectId"), rpc.String(req, "memberId"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(projectPayload(p), msgMemberRemoved), nil
}

// GetProject takes projectId.
func (s *Server) GetProject(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	p, err := s.svc.GetProject(ctx, rpc.String(req, "projectId"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(projectPayload(p), msgFetched), nil
}

func teamName(res *cascade.AddTeamResult) string {
	if res.Team == nil {
		return ""
	}
	return res.Team.Name
}

func projectPayload(p *domain.Project) map[string]interface{} {
	members := make([]interface{}, 0, len(p.Members))
	for _, m := range p.Members {
		if m.Peer.Kind != membership.KindUser {
			continue
		}
		members = append(members, map[string]interface{}{"user": m.Peer.ID, "role": string(m.Role)})
	}
	return map[string]interface{}{
		"id":          p.ID,
		"orgId":       p.OrgID,
		"createdBy":   p.CreatedBy,
		"projectName": p.Name,
		"description": p.Description,
		"members":     members,
		"teams":       rpc.Strings(p.Teams),
		"createdAt":   rpc.Time(p.CreatedAt),
		"updatedAt":   rpc.Time(p.UpdatedAt),
	}
}
