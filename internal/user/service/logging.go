package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"collab-control-plane/backend/internal/user/domain"
)

// LoggingService logs every call to the wrapped UserService. Passwords and tokens are never logged.
type LoggingService struct {
	log  *zap.Logger
	next UserService
}

var _ UserService = (*LoggingService)(nil)

// NewLoggingService wraps s with call logging.
func NewLoggingService(log *zap.Logger, s UserService) *LoggingService {
	return &LoggingService{log: log, next: s}
}

func (l *LoggingService) Register(ctx context.Context, email, password, userName string) (u *domain.User, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Info("failed to register user", zap.Error(err), dur)
			return
		}
		l.log.Info("user registered", zap.String("user_id", u.ID), dur)
	}(time.Now())
	return l.next.Register(ctx, email, password, userName)
}

func (l *LoggingService) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Info("failed login", zap.Error(err), dur)
			return
		}
		l.log.Debug("user login", zap.String("user_id", res.UserID), dur)
	}(time.Now())
	return l.next.Login(ctx, email, password)
}

func (l *LoggingService) GetUser(ctx context.Context, userID string) (u *domain.User, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.log.Debug("failed to find user", zap.String("user_id", userID), zap.Error(err), dur)
			return
		}
		l.log.Debug("user find by ID", zap.String("user_id", userID), dur)
	}(time.Now())
	return l.next.GetUser(ctx, userID)
}
