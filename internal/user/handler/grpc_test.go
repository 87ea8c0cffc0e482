package handler

import (
	"context"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/user/domain"
	"collab-control-plane/backend/internal/user/service"
)

type mockService struct {
	user  *domain.User
	login *service.LoginResult
	err   error
	args  []string
}

func (m *mockService) Register(ctx context.Context, email, password, userName string) (*domain.User, error) {
	m.args = []string{email, password, userName}
	return m.user, m.err
}

func (m *mockService) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	m.args = []string{email, password}
	return m.login, m.err
}

func (m *mockService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	m.args = []string{userID}
	return m.user, m.err
}

func testUser() *domain.User {
	return &domain.User{
		ID:           "ann",
		Email:        "ann@example.com",
		UserName:     "Ann",
		PasswordHash: "$2a$10$secret",
		Status:       domain.UserStatusActive,
		InOrg: membership.Edges{
			{Owner: membership.UserRef("ann"), Peer: membership.OrgRef("o1"), Role: membership.RoleAdmin},
		},
	}
}

func TestRegisterUser_OmitsPasswordHash(t *testing.T) {
	svc := &mockService{user: testUser()}
	req, _ := structpb.NewStruct(map[string]interface{}{
		"email": "ann@example.com", "password": "correct-horse", "userName": "Ann",
	})

	resp, err := NewServer(svc).RegisterUser(context.Background(), req)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if svc.args[1] != "correct-horse" || svc.args[2] != "Ann" {
		t.Errorf("args = %v", svc.args)
	}
	payload := resp.Payload.(map[string]interface{})
	for k, v := range payload {
		if s, ok := v.(string); ok && s == "$2a$10$secret" {
			t.Errorf("payload field %q carries the password hash", k)
		}
	}
	orgs := payload["inOrg"].([]interface{})
	if len(orgs) != 1 || orgs[0].(map[string]interface{})["role"] != "admin" {
		t.Errorf("inOrg = %v", orgs)
	}
	if _, err := structpb.NewValue(payload); err != nil {
		t.Errorf("payload is not representable as a Struct: %v", err)
	}
}

func TestLogin(t *testing.T) {
	exp := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	svc := &mockService{login: &service.LoginResult{AccessToken: "tok", ExpiresAt: exp, UserID: "ann"}}
	req, _ := structpb.NewStruct(map[string]interface{}{"email": "ann@example.com", "password": "correct-horse"})

	resp, err := NewServer(svc).Login(context.Background(), req)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	payload := resp.Payload.(map[string]interface{})
	if payload["accessToken"] != "tok" || payload["expiresAt"] != "2026-03-01T12:15:00Z" {
		t.Errorf("payload = %v", payload)
	}
}

func TestLogin_Error(t *testing.T) {
	want := apperr.Unauthorized("Invalid email or password")
	req, _ := structpb.NewStruct(map[string]interface{}{"email": "ann@example.com", "password": "nope"})

	if _, err := NewServer(&mockService{err: want}).Login(context.Background(), req); err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestGetUser_EmptyIDMeansSelf(t *testing.T) {
	svc := &mockService{user: testUser()}
	if _, err := NewServer(svc).GetUser(context.Background(), &structpb.Struct{}); err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if svc.args[0] != "" {
		t.Errorf("userId = %q, want empty", svc.args[0])
	}
}
