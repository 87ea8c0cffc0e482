// Package service implements team operations inside an organization.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/rbac"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/team/domain"
	"collab-control-plane/backend/internal/txn"
)

const msgTeamNotFound = "Team not found"

// Gate authorizes an operation on a target id.
type Gate interface {
	Authorize(ctx context.Context, op rbac.Operation, target string) (rbac.Grant, error)
}

// Executor applies a planned cascade atomically.
type Executor interface {
	Execute(ctx context.Context, op string, plan txn.PlanFunc) (*cascade.Plan, error)
}

// TeamService is the set of team operations exposed to handlers.
type TeamService interface {
	CreateTeam(ctx context.Context, orgID, name string) (*domain.Team, error)
	AddMember(ctx context.Context, teamID, memberID, asRoleOf string) (*domain.Team, error)
	GetTeam(ctx context.Context, teamID string) (*domain.Team, error)
}

// Service implements TeamService.
type Service struct {
	gate   Gate
	exec   Executor
	reader store.Reader
	now    func() time.Time
	newID  func() string
}

var _ TeamService = (*Service)(nil)

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

// CreateTeam creates a team in orgID led by the caller.
func (s *Service) CreateTeam(ctx context.Context, orgID, name string) (*domain.Team, error) {
	grant, err := s.gate.Authorize(ctx, rbac.OpTeamCreate, orgID)
	if err != nil {
		return nil, err
	}
	in := cascade.CreateTeamInput{TeamID: s.newID(), OrgID: grant.OrgID, Name: name, ActorID: grant.ActorID, Now: s.now()}
	plan, err := s.exec.Execute(ctx, "create team", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.CreateTeam(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Team](plan)
}

// AddMember adds an org member to the team. The caller's role is checked in the team's org.
// Projects the team is already linked to are not changed.
func (s *Service) AddMember(ctx context.Context, teamID, memberID, asRoleOf string) (*domain.Team, error) {
	t, err := s.lookup(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, rbac.OpTeamAddMember, t.OrgID); err != nil {
		return nil, err
	}
	in := cascade.AddTeamMemberInput{TeamID: teamID, MemberID: memberID, AsRoleOf: asRoleOf}
	plan, err := s.exec.Execute(ctx, "add team member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.AddTeamMember(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Team](plan)
}

// GetTeam returns the team to any member of its org.
func (s *Service) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	t, err := s.lookup(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.Authorize(ctx, rbac.OpOrgView, t.OrgID); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) lookup(ctx context.Context, teamID string) (*domain.Team, error) {
	t, err := s.reader.GetTeam(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgTeamNotFound)
	}
	if err != nil {
		return nil, apperr.Internal("get team", err)
	}
	return t, nil
}

func result[T any](plan *cascade.Plan) (T, error) {
	v, err := cascade.ResultOf[T](plan)
	if err != nil {
		return v, apperr.Internal(plan.Operation, err)
	}
	return v, nil
}
