package service

import (
	"context"
	"testing"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/platform/rbac"
	"collab-control-plane/backend/internal/server/interceptors"
	"collab-control-plane/backend/internal/store/memory"
	"collab-control-plane/backend/internal/store/storetest"
	"collab-control-plane/backend/internal/txn"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	f := storetest.New(t).
		User("ann").User("mod").User("bob").User("dan").
		Org("o1", "Acme").
		OrgMember("o1", "ann", membership.RoleAdmin).
		OrgMember("o1", "mod", membership.RoleModerator).
		OrgMember("o1", "bob", membership.RoleMember)
	gate, err := rbac.NewGate(context.Background(), rbac.StoreResolver{Reader: f.Store}, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	coord, err := txn.New(f.Store, nil, txn.Options{})
	if err != nil {
		t.Fatalf("txn.New: %v", err)
	}
	svc := NewService(gate, coord, f.Store)
	svc.newID = func() string { return "o2" }
	return svc, f.Store
}

func as(userID string) context.Context {
	return interceptors.WithIdentity(context.Background(), userID, "jti-"+userID)
}

func TestCreateOrganization(t *testing.T) {
	svc, s := newTestService(t)
	o, err := svc.CreateOrganization(as("dan"), " Globex ")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	if o.ID != "o2" || o.Name != "Globex" {
		t.Errorf("org = %+v", o)
	}
	u, err := s.GetUser(context.Background(), "dan")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if role, ok := u.InOrg.RoleOf(membership.OrgRef("o2")); !ok || role != membership.RoleAdmin {
		t.Errorf("creator inOrg role = %q, %v; want admin", role, ok)
	}
	stored, _ := s.GetOrganization(context.Background(), "o2")
	if len(stored.Timeline) != 1 {
		t.Errorf("timeline entries = %d, want 1", len(stored.Timeline))
	}
}

func TestCreateOrganization_Rejections(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateOrganization(context.Background(), "Globex")
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Errorf("no actor: err = %v, want unauthorized", err)
	}
	_, err = svc.CreateOrganization(as("dan"), "")
	if apperr.CodeOf(err) != apperr.CodeValidation {
		t.Errorf("empty name: err = %v, want validation", err)
	}
}

func TestAddMember(t *testing.T) {
	tests := []struct {
		name   string
		actor  string
		member string
		role   string
		code   apperr.Code
	}{
		{"admin adds", "ann", "dan", "", ""},
		{"moderator adds leader", "mod", "dan", "leader", ""},
		{"member denied", "bob", "dan", "", apperr.CodeForbidden},
		{"outsider denied", "dan", "dan", "", apperr.CodeUnauthorized},
		{"already member", "ann", "bob", "", apperr.CodeDuplicateMembership},
		{"unknown user", "ann", "zed", "", apperr.CodeNotFound},
		{"bad role", "ann", "dan", "owner", apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, s := newTestService(t)
			o, err := svc.AddMember(as(tt.actor), "o1", tt.member, tt.role)
			if tt.code != "" {
				if apperr.CodeOf(err) != tt.code {
					t.Fatalf("err = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddMember: %v", err)
			}
			if _, ok := o.RoleOf(tt.member); !ok {
				t.Error("result does not list the new member")
			}
			u, _ := s.GetUser(context.Background(), tt.member)
			if !u.InOrg.Has(membership.OrgRef("o1")) {
				t.Error("user side of the membership is missing")
			}
		})
	}
}

func TestGetOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	o, err := svc.GetOrganization(as("bob"), "o1")
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if len(o.Members) != 3 {
		t.Errorf("members = %d, want 3", len(o.Members))
	}
	if _, err := svc.GetOrganization(as("bob"), "o9"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Errorf("missing org: err = %v, want not found", err)
	}
}
