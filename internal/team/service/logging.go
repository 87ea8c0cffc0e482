package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collab-control-plane/backend/internal/team/domain"
)

// LoggingService logs every call to the wrapped TeamService.
type LoggingService struct {
	log  *zap.Logger
	next TeamService
}

var _ TeamService = (*LoggingService)(nil)

// NewLoggingService wraps s with call logging.
func NewLoggingService(log *zap.Logger, s TeamService) *LoggingService {
	return &LoggingService{log: log, next: s}
}

func (l *LoggingService) CreateTeam(ctx context.Context, orgID, name string) (t *domain.Team, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Info("failed to create team", zap.String("org_id", orgID), zap.Error(err), dur)
			return
		}
		l.log.Debug("team create", zap.String("org_id", orgID), zap.String("team_id", t.ID), dur)
	}(time.Now())
	return l.next.CreateTeam(ctx, orgID, name)
}

func (l *LoggingService) AddMember(ctx context.Context, teamID, memberID, asRoleOf string) (t *domain.Team, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Info("failed to add team member", zap.String("team_id", teamID), zap.String("member_id", memberID), zap.Error(err), dur)
			return
		}
		l.log.Debug("team member add", zap.String("team_id", teamID), zap.String("member_id", memberID), dur)
	}(time.Now())
	return l.next.AddMember(ctx, teamID, memberID, asRoleOf)
}

func (l *LoggingService) GetTeam(ctx context.Context, teamID string) (t *domain.Team, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Debug("failed to find team", zap.String("team_id", teamID), zap.Error(err), dur)
			return
		}
		l.log.Debug("team find by ID", zap.String("team_id", teamID), dur)
	}(time.Now())
	return l.next.GetTeam(ctx, teamID)
}
