// Package handler exposes UserService over gRPC.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/envelope"
	"collab-control-plane/backend/internal/server/rpc"
	"collab-control-plane/backend/internal/user/domain"
	"collab-control-plane/backend/internal/user/service"
)

// ServiceName is the gRPC service name.
const ServiceName = "collab.user.v1.UserService"

// PublicMethods are the full method names callable without a Bearer token.
var PublicMethods = []string{
	rpc.FullMethod(ServiceName, "Register"),
	rpc.FullMethod(ServiceName, "Login"),
}

// Server implements UserService.
type Server struct {
	svc service.UserService
}

// NewServer returns a Server backed by svc.
func NewServer(svc service.UserService) *Server {
	return &Server{svc: svc}
}

// Register adds the service to s.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	rpc.Register(r, ServiceName,
		rpc.Method{Name: "Register", Handler: s.RegisterUser},
		rpc.Method{Name: "Login", Handler: s.Login},
		rpc.Method{Name: "GetUser", Handler: s.GetUser},
	)
}

// RegisterUser takes email, password and userName.
func (s *Server) RegisterUser(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	u, err := s.svc.Register(ctx, rpc.String(req, "email"), rpc.String(req, "password"), rpc.String(req, "userName"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(userPayload(u), "user registered successfully"), nil
}

// Login takes email and password and returns an access token.
func (s *Server) Login(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	res, err := s.svc.Login(ctx, rpc.String(req, "email"), rpc.String(req, "password"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(map[string]interface{}{
		"accessToken": res.AccessToken,
		"expiresAt":   rpc.Time(res.ExpiresAt),
		"userId":      res.UserID,
	}, "login successful"), nil
}

// GetUser takes an optional userId. An empty id returns the caller.
func (s *Server) GetUser(ctx context.Context, req *structpb.Struct) (*envelope.Response, error) {
	u, err := s.svc.GetUser(ctx, rpc.String(req, "userId"))
	if err != nil {
		return nil, err
	}
	return envelope.OK(userPayload(u), "user fetched successfully"), nil
}

// userPayload never carries the password hash.
func userPayload(u *domain.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"email":     u.Email,
		"userName":  u.UserName,
		"status":    string(u.Status),
		"inOrg":     edgesPayload(u.InOrg),
		"inTeam":    edgesPayload(u.InTeam),
		"inProject": edgesPayload(u.InProject),
		"createdAt": rpc.Time(u.CreatedAt),
	}
}

func edgesPayload(es membership.Edges) []interface{} {
	out := make([]interface{}, 0, len(es))
	for _, e := range es {
		out = append(out, map[string]interface{}{"id": e.Peer.ID, "role": string(e.Role)})
	}
	return out
}
