// Package service implements organization provisioning: creating an org and adding its members.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/organization/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/rbac"
	"collab-control-plane/backend/internal/server/interceptors"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/txn"
)

// Gate authorizes an operation on a target id.
type Gate interface {
	Authorize(ctx context.Context, op rbac.Operation, target string) (rbac.Grant, error)
}

// Executor applies a planned cascade atomically.
type Executor interface {
	Execute(ctx context.Context, op string, plan txn.PlanFunc) (*cascade.Plan, error)
}

// OrganizationService is the set of organization operations exposed to handlers.
type OrganizationService interface {
	CreateOrganization(ctx context.Context, name string) (*domain.Org, error)
	AddMember(ctx context.Context, orgID, memberID, asRoleOf string) (*domain.Org, error)
	GetOrganization(ctx context.Context, orgID string) (*domain.Org, error)
}

// Service implements OrganizationService.
type Service struct {
	gate   Gate
	exec   Executor
	reader store.Reader
	now    func() time.Time
	newID  func() string
}

var _ OrganizationService = (*Service)(nil)

// NewService returns a Service.
func NewService(gate Gate, exec Executor, reader store.Reader) *Service {
	return &Service{
		gate:   gate,
		exec:   exec,
		reader: reader,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateOrganization creates an org whose creator becomes its admin. Any authenticated user may
// create one.
func (s *Service) CreateOrganization(ctx context.Context, name string) (*domain.Org, error) {
	actorID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, apperr.Unauthorized("Authentication required")
	}
	in := cascade.CreateOrganizationInput{OrgID: s.newID(), Name: name, ActorID: actorID, Now: s.now()}
	plan, err := s.exec.Execute(ctx, "create organization", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.CreateOrganization(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Org](plan)
}

// AddMember adds an existing user to the org.
func (s *Service) AddMember(ctx context.Context, orgID, memberID, asRoleOf string) (*domain.Org, error) {
	if _, err := s.gate.Authorize(ctx, rbac.OpOrgAddMember, orgID); err != nil {
		return nil, err
	}
	in := cascade.AddOrgMemberInput{OrgID: orgID, MemberID: memberID, AsRoleOf: asRoleOf}
	plan, err := s.exec.Execute(ctx, "add organization member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.AddOrgMember(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Org](plan)
}

// GetOrganization returns the org with its members, teams, projects and timeline.
func (s *Service) GetOrganization(ctx context.Context, orgID string) (*domain.Org, error) {
	if _, err := s.gate.Authorize(ctx, rbac.OpOrgView, orgID); err != nil {
		return nil, err
	}
	o, err := s.reader.GetOrganization(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Organization not found")
	}
	if err != nil {
		return nil, apperr.Internal("get organization", err)
	}
	return o, nil
}

func result[T any](plan *cascade.Plan) (T, error) {
	v, err := cascade.ResultOf[T](plan)
	if err != nil {
		return v, apperr.Internal(plan.Operation, err)
	}
	return v, nil
}
