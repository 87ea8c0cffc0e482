// Package handler exposes OrganizationService over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/organization/domain"
	"collab-control-plane/backend/internal/organization/service"
	"collab-control-plane/backend/internal/platform/envelope"
	"collab-control-plane/backend/internal/server/rpc"
)

// ServiceName is the gRPC service name.
const ServiceName = "collab.organization.v1.OrganizationService"

// Server implements OrganizationService.
type Server struct {
	svc service.OrganizationService
}

// NewServer returns a Server backed by svc.
func NewServer(svc service.OrganizationService) *Server {
	return &Server{svc: svc}
}

// Register adds the service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	rpc.Register(r, ServiceName,
		rpc.Method{Name: "CreateOrganization", Handler: s.CreateOrganization},
		rpc.Method{Name: "AddMember", Handler: s.AddMember},
		rpc.Method{Name: "GetOrganization", Handler: s.GetOrganization},
	)
}

// CreateOrganization takes name. The caller becomes the org admin.
func (s *Server) CreateOrganization(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	o, err := s.svc.CreateOrganization(ctx, rpc.String(req, "name"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(orgPayload(o), "organization created successfully"), nil
}

// AddMember takes orgId, memberId and optional asRoleOf.
func (s *Server) AddMember(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	o, err := s.svc.AddMember(ctx, rpc.String(req, "orgId"), rpc.String(req, "memberId"), rpc.String(req, "asRoleOf"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(orgPayload(o), "Member successfully added in to organization"), nil
}

// GetOrganization takes orgId.
func (s *Server) GetOrganization(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	o, err := s.svc.GetOrganization(ctx, rpc.String(req, "orgId"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(orgPayload(o), "organization fetched successfully"), nil
}

func orgPayload(o *domain.Org) map[string]interface{} {
	members := make([]interface{}, 0, len(o.Members))
	for _, m := range o.Members.OfKind(membership.KindUser) {
		members = append(members, map[string]interface{}{"user": m.Peer.ID, "role": string(m.Role)})
	}
	timeline := make([]interface{}, 0, len(o.Timeline))
	for _, ev := range o.Timeline {
		timeline = append(timeline, map[string]interface{}{
			"text":      ev.Text,
			"actorId":   ev.ActorID,
			"createdAt": rpc.Time(ev.CreatedAt),
		})
	}
	return map[string]interface{}{
		"id":        o.ID,
		"name":      o.Name,
		"createdBy": o.CreatedBy,
		"status":    string(o.Status),
		"members":   members,
		"teams":     rpc.Strings(o.Teams),
		"projects":  rpc.Strings(o.Projects),
		"timeline":  timeline,
		"createdAt": rpc.Time(o.CreatedAt),
	}
}
