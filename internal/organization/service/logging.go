package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collab-control-plane/backend/internal/organization/domain"
)

// LoggingService logs every call to the wrapped OrganizationService.
type LoggingService struct {
	log  *zap.Logger
	next OrganizationService
}

var _ OrganizationService = (*LoggingService)(nil)

// NewLoggingService wraps s with call logging.
func NewLoggingService(log *zap.Logger, s OrganizationService) *LoggingService {
	return &LoggingService{log: log, next: s}
}

func (l *LoggingService) CreateOrganization(ctx context.Context, name string) (o *domain.Org, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Info("failed to create organization", zap.Error(err), dur)
			return
		}
		l.log.Debug("organization create", zap.String("org_id", o.ID), dur)
	}(time.Now())
	return l.next.CreateOrganization(ctx, name)
}

func (l *LoggingService) AddMember(ctx context.Context, orgID, memberID, asRoleOf string) (o *domain.Org, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		ids := []zap.Field{zap.String("org_id", orgID), zap.String("member_id", memberID), dur}
		if err != nil {
			l.log.Info("failed to add organization member", append(ids, zap.Error(err))...)
			return
		}
		l.log.Debug("organization member add", ids...)
	}(time.Now())
	return l.next.AddMember(ctx, orgID, memberID, asRoleOf)
}

func (l *LoggingService) GetOrganization(ctx context.Context, orgID string) (o *domain.Org, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Debug("failed to find organization", zap.String("org_id", orgID), zap.Error(err), dur)
			return
		}
		l.log.Debug("organization find by ID", zap.String("org_id", orgID), dur)
	}(time.Now())
	return l.next.GetOrganization(ctx, orgID)
}
