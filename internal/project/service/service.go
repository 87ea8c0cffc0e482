// Package service implements the project operations. Each mutation is authorized against the
// current state, planned and applied as one transactional cascade, and followed by the
// notifications the cascade produced.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/rbac"
	"collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/txn"
)

// Gate authorizes an operation on a target id. *rbac.Gate implements it.
type Gate interface {
	Authorize(ctx context.Context, op rbac.Operation, target string) (rbac.Grant, error)
}

// Executor applies a planned cascade atomically. *txn.Coordinator implements it.
type Executor interface {
	Execute(ctx context.Context, op string, plan txn.PlanFunc) (*cascade.Plan, error)
}

// Dispatcher delivers post-commit events without blocking. *notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []cascade.Event)
}

// ProjectService is the set of project operations exposed to handlers.
type ProjectService interface {
	CreateProject(ctx context.Context, orgID, name, description string) (*domain.Project, error)
	UpdateProject(ctx context.Context, projectID, name, description string) (*domain.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	AddMember(ctx context.Context, projectID, memberID, asRoleOf string) (*domain.Project, error)
	AddTeam(ctx context.Context, projectID, teamID, asRoleOf string) (*cascade.AddTeamResult, error)
	RemoveMember(ctx context.Context, projectID, memberID string) (*domain.Project, error)
	GetProject(ctx context.Context, projectID string) (*domain.Project, error)
}

// Service implements ProjectService.
type Service struct {
	gate   Gate
	exec   Executor
	notify Dispatcher
	reader store.Reader
	now    func() time.Time
	newID  func() string
}

var _ ProjectService = (*Service)(nil)

// NewService returns a Service. reader serves GetProject outside of any transaction.
func NewService(gate Gate, exec Executor, notify Dispatcher, reader store.Reader) *Service {
	return &Service{
		gate:   gate,
		exec:   exec,
		notify: notify,
		reader: reader,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// CreateProject creates a project in orgID owned by the caller.
func (s *Service) CreateProject(ctx context.Context, orgID, name, description string) (*domain.Project, error) {
	grant, err := s.gate.Authorize(ctx, rbac.OpProjectCreate, orgID)
	if err != nil {
		return nil, err
	}
	in := cascade.CreateProjectInput{
		ProjectID:   s.newID(),
		OrgID:       grant.OrgID,
		ActorID:     grant.ActorID,
		Name:        name,
		Description: description,
		Now:         s.now(),
	}
	plan, err := s.exec.Execute(ctx, "create project", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.CreateProject(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Project](plan)
}

// UpdateProject changes the project's name and description. Empty values are left unchanged.
func (s *Service) UpdateProject(ctx context.Context, projectID, name, description string) (*domain.Project, error) {
	if _, err := s.gate.Authorize(ctx, rbac.OpProjectUpdate, projectID); err != nil {
		return nil, err
	}
	in := cascade.UpdateProjectInput{ProjectID: projectID, Name: name, Description: description, Now: s.now()}
	plan, err := s.exec.Execute(ctx, "update project", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.UpdateProject(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Project](plan)
}

// DeleteProject deletes the project and every reference to it. Only the owner may delete.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	grant, err := s.gate.Authorize(ctx, rbac.OpProjectDelete, projectID)
	if err != nil {
		return err
	}
	in := cascade.DeleteProjectInput{ProjectID: projectID, ActorID: grant.ActorID, Now: s.now()}
	_, err = s.exec.Execute(ctx, "delete project", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.DeleteProject(ctx, r, in)
	})
	return err
}

// AddMember adds an org member to the project and notifies them.
func (s *Service) AddMember(ctx context.Context, projectID, memberID, asRoleOf string) (*domain.Project, error) {
	grant, err := s.gate.Authorize(ctx, rbac.OpProjectAddMember, projectID)
	if err != nil {
		return nil, err
	}
	in := cascade.AddMemberInput{ProjectID: projectID, MemberID: memberID, AsRoleOf: asRoleOf, ActorID: grant.ActorID}
	plan, err := s.exec.Execute(ctx, "add member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.AddMember(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	s.notify.Dispatch(ctx, plan.Events)
	return result[*domain.Project](plan)
}

// AddTeam links a team to the project, adds its members and notifies the ones who were new.
func (s *Service) AddTeam(ctx context.Context, projectID, teamID, asRoleOf string) (*cascade.AddTeamResult, error) {
	grant, err := s.gate.Authorize(ctx, rbac.OpProjectAddTeam, projectID)
	if err != nil {
		return nil, err
	}
	in := cascade.AddTeamInput{ProjectID: projectID, TeamID: teamID, AsRoleOf: asRoleOf, ActorID: grant.ActorID}
	plan, err := s.exec.Execute(ctx, "add team", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.AddTeam(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	s.notify.Dispatch(ctx, plan.Events)
	return result[*cascade.AddTeamResult](plan)
}

// RemoveMember removes a user from the project. Removing a non-member succeeds without changes.
func (s *Service) RemoveMember(ctx context.Context, projectID, memberID string) (*domain.Project, error) {
	if _, err := s.gate.Authorize(ctx, rbac.OpProjectRemoveMember, projectID); err != nil {
		return nil, err
	}
	in := cascade.RemoveMemberInput{ProjectID: projectID, MemberID: memberID}
	plan, err := s.exec.Execute(ctx, "remove member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.RemoveMember(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	return result[*domain.Project](plan)
}

// GetProject returns the project with its members and teams. Any project member may read it.
func (s *Service) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if _, err := s.gate.Authorize(ctx, rbac.OpProjectView, projectID); err != nil {
		return nil, err
	}
	p, err := s.reader.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, apperr.Internal("get project", err)
	}
	return p, nil
}

func result[T any](plan *cascade.Plan) (T, error) {
	v, err := cascade.ResultOf[T](plan)
	if err != nil {
		return v, apperr.Internal(plan.Operation, err)
	}
	return v, nil
}
