// Package service implements account registration, password login and the caller's own profile.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/server/interceptors"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/txn"
	"collab-control-plane/backend/internal/user/domain"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidEmail       = "invalid email format"
	msgPasswordTooShort   = "password must be at least 8 characters"
	msgPasswordTooLong    = "password must be at most 72 bytes"
	minPasswordLen        = 8
	maxPasswordLen        = 72
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Executor applies a planned cascade atomically.
type Executor interface {
	Execute(ctx context.Context, op string, plan txn.PlanFunc) (*cascade.Plan, error)
}

// PasswordHasher hashes and verifies passwords. *security.Hasher implements it.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
	Compare(hash string, password []byte) error
}

// TokenIssuer issues access tokens. *security.TokenProvider implements it.
type TokenIssuer interface {
	IssueAccess(userID, email string) (token, jti string, expiresAt time.Time, err error)
}

// LoginResult is a successful login.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	UserID      string
}

// UserService is the set of account operations exposed to handlers.
type UserService interface {
	Register(ctx context.Context, email, password, userName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Service implements UserService.
type Service struct {
	exec   Executor
	reader store.Reader
	hasher PasswordHasher
	tokens TokenIssuer
	now    func() time.Time
	newID  func() string
}

var _ UserService = (*Service)(nil)

// NewService returns a Service.
func NewService(exec Executor, reader store.Reader, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{
		exec:   exec,
		reader: reader,
		hasher: hasher,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

// Register creates an account. The email is stored lower-cased and must not be registered yet.
func (s *Service) Register(ctx context.Context, email, password, userName string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, apperr.Validation(msgInvalidEmail)
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Validation(msgPasswordTooShort)
	}
	if len(password) > maxPasswordLen {
		return nil, apperr.Validation(msgPasswordTooLong)
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, apperr.Internal("register user", err)
	}
	in := cascade.RegisterUserInput{UserID: s.newID(), Email: email, UserName: userName, PasswordHash: hash, Now: s.now()}
	plan, err := s.exec.Execute(ctx, "register user", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.RegisterUser(ctx, r, in)
	})
	if err != nil {
		return nil, err
	}
	u, err := cascade.ResultOf[*domain.User](plan)
	if err != nil {
		return nil, apperr.Internal("register user", err)
	}
	return u, nil
}

// Login verifies the password and issues an access token. Unknown emails, disabled accounts and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	u, err := s.reader.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return nil, apperr.Internal("login", err)
	}
	if u.Status != domain.UserStatusActive || u.PasswordHash == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err := s.hasher.Compare(u.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	token, _, exp, err := s.tokens.IssueAccess(u.ID, u.Email)
	if err != nil {
		return nil, apperr.Internal("login", err)
	}
	return &LoginResult{AccessToken: token, ExpiresAt: exp, UserID: u.ID}, nil
}

// GetUser returns the caller's own account with its memberships.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	actorID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return nil, apperr.Unauthorized("Authentication required")
	}
	if userID == "" {
		userID = actorID
	}
	if userID != actorID {
		return nil, apperr.Forbidden("You do not have permission to perform this action")
	}
	u, err := s.reader.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	return u, nil
}
