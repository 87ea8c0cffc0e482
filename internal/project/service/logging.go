package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/project/domain"
)

// LoggingService logs every call to the wrapped ProjectService.
type LoggingService struct {
	log  *zap.Logger
	next ProjectService
}

var _ ProjectService = (*LoggingService)(nil)

// NewLoggingService wraps s with call logging.
func NewLoggingService(log *zap.Logger, s ProjectService) *LoggingService {
	return &LoggingService{log: log, next: s}
}

// done logs the outcome of a call. Client errors are logged at info; failures at error.
func (l *LoggingService) done(msg string, err error, start time.Time, fields ...zap.Field) {
	fields = append(fields, zap.Duration("took", time.Since(start)))
	if err == nil {
		l.log.Debug(msg, fields...)
		return
	}
	fields = append(fields, zap.Error(err), zap.String("code", string(apperr.CodeOf(err))))
	switch apperr.CodeOf(err) {
	case apperr.CodeCascadeFailed, apperr.CodeInternal, "":
		l.log.Error("failed to "+msg, fields...)
	default:
		l.log.Info("failed to "+msg, fields...)
	}
}

func (l *LoggingService) CreateProject(ctx context.Context, orgID, name, description string) (p *domain.Project, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("org_id", orgID)}
		if p != nil {
			fields = append(fields, zap.String("project_id", p.ID))
		}
		l.done("create project", err, start, fields...)
	}(time.Now())
	return l.next.CreateProject(ctx, orgID, name, description)
}

func (l *LoggingService) UpdateProject(ctx context.Context, projectID, name, description string) (p *domain.Project, err error) {
	defer func(start time.Time) {
		l.done("update project", err, start, zap.String("project_id", projectID))
	}(time.Now())
	return l.next.UpdateProject(ctx, projectID, name, description)
}

func (l *LoggingService) DeleteProject(ctx context.Context, projectID string) (err error) {
	defer func(start time.Time) {
		l.done("delete project", err, start, zap.String("project_id", projectID))
	}(time.Now())
	return l.next.DeleteProject(ctx, projectID)
}

func (l *LoggingService) AddMember(ctx context.Context, projectID, memberID, asRoleOf string) (p *domain.Project, err error) {
	defer func(start time.Time) {
		l.done("add project member", err, start,
			zap.String("project_id", projectID), zap.String("member_id", memberID), zap.String("role", asRoleOf))
	}(time.Now())
	return l.next.AddMember(ctx, projectID, memberID, asRoleOf)
}

func (l *LoggingService) AddTeam(ctx context.Context, projectID, teamID, asRoleOf string) (res *cascade.AddTeamResult, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("project_id", projectID), zap.String("team_id", teamID)}
		if res != nil {
			fields = append(fields, zap.Int("added", len(res.Added)))
		}
		l.done("add project team", err, start, fields...)
	}(time.Now())
	return l.next.AddTeam(ctx, projectID, teamID, asRoleOf)
}

func (l *LoggingService) RemoveMember(ctx context.Context, projectID, memberID string) (p *domain.Project, err error) {
	defer func(start time.Time) {
		l.done("remove project member", err, start, zap.String("project_id", projectID), zap.String("member_id", memberID))
	}(time.Now())
	return l.next.RemoveMember(ctx, projectID, memberID)
}

func (l *LoggingService) GetProject(ctx context.Context, projectID string) (p *domain.Project, err error) {
	defer func(start time.Time) {
		l.done("find project", err, start, zap.String("project_id", projectID))
	}(time.Now())
	return l.next.GetProject(ctx, projectID)
}
