package rbac

import (
	"context"
	"errors"
	"testing"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/server/interceptors"
	"collab-control-plane/backend/internal/store/storetest"
)

// mockResolver implements RoleResolver for tests.
type mockResolver struct {
	orgRoles     map[string]membership.Role // "org:user"
	projectRoles map[string]membership.Role // "project:user"
	owners       map[string]string
	err          error
}

func (m *mockResolver) OrgRole(ctx context.Context, orgID, userID string) (membership.Role, error) {
	if m.err != nil {
		return "", m.err
	}
	if orgID == "missing" {
		return "", ErrScopeNotFound
	}
	return m.orgRoles[orgID+":"+userID], nil
}

func (m *mockResolver) ProjectRole(ctx context.Context, projectID, userID string) (membership.Role, string, string, error) {
	if m.err != nil {
		return "", "", "", m.err
	}
	owner, ok := m.owners[projectID]
	if !ok {
		return "", "", "", ErrScopeNotFound
	}
	return m.projectRoles[projectID+":"+userID], owner, "org-1", nil
}

func newTestGate(t *testing.T, r RoleResolver) *Gate {
	t.Helper()
	g, err := NewGate(context.Background(), r, nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func actor(id string) context.Context {
	return interceptors.WithIdentity(context.Background(), id, "jti-"+id)
}

func TestGate_Authorize(t *testing.T) {
	r := &mockResolver{
		orgRoles: map[string]membership.Role{
			"org-1:admin":  membership.RoleAdmin,
			"org-1:mod":    membership.RoleModerator,
			"org-1:leader": membership.RoleLeader,
			"org-1:member": membership.RoleMember,
		},
		projectRoles: map[string]membership.Role{
			"p1:owner":  membership.RoleAdmin,
			"p1:admin2": membership.RoleAdmin,
			"p1:leader": membership.RoleLeader,
			"p1:member": membership.RoleMember,
		},
		owners: map[string]string{"p1": "owner"},
	}
	g := newTestGate(t, r)

	testCases := []struct {
		name     string
		ctx      context.Context
		op       Operation
		target   string
		wantCode apperr.Code
		wantMsg  string
	}{
		{"create by leader", actor("leader"), OpProjectCreate, "org-1", "", ""},
		{"create by admin", actor("admin"), OpProjectCreate, "org-1", "", ""},
		{"create by member", actor("member"), OpProjectCreate, "org-1", apperr.CodeForbidden, msgRoleDenied},
		{"create by outsider", actor("stranger"), OpProjectCreate, "org-1", apperr.CodeUnauthorized, msgNotOrgMember},
		{"create without actor", context.Background(), OpProjectCreate, "org-1", apperr.CodeUnauthorized, msgUnauthenticated},
		{"create in missing org", actor("admin"), OpProjectCreate, "missing", apperr.CodeNotFound, msgOrgNotFound},
		{"add member by leader", actor("leader"), OpProjectAddMember, "p1", "", ""},
		{"add member by member", actor("member"), OpProjectAddMember, "p1", apperr.CodeForbidden, msgRoleDenied},
		{"add team by leader", actor("leader"), OpProjectAddTeam, "p1", "", ""},
		{"update in missing project", actor("leader"), OpProjectUpdate, "nope", apperr.CodeNotFound, msgProjectNotFound},
		{"delete by owner", actor("owner"), OpProjectDelete, "p1", "", ""},
		{"delete by other admin", actor("admin2"), OpProjectDelete, "p1", apperr.CodeForbidden, msgOwnerOnly},
		{"delete by leader", actor("leader"), OpProjectDelete, "p1", apperr.CodeForbidden, msgRoleDenied},
		{"view by member", actor("member"), OpProjectView, "p1", "", ""},
		{"org add member by moderator", actor("mod"), OpOrgAddMember, "org-1", "", ""},
		{"org add member by leader", actor("leader"), OpOrgAddMember, "org-1", apperr.CodeForbidden, msgRoleDenied},
		{"team create by moderator", actor("mod"), OpTeamCreate, "org-1", "", ""},
		{"team add member by leader", actor("leader"), OpTeamAddMember, "org-1", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			grant, err := g.Authorize(tc.ctx, tc.op, tc.target)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("Authorize: %v", err)
				}
				if grant.ActorID == "" || grant.Role == membership.RoleNone {
					t.Errorf("grant = %+v, want actor and role", grant)
				}
				return
			}
			if err == nil {
				t.Fatalf("Authorize: want %s error, got grant %+v", tc.wantCode, grant)
			}
			if got := apperr.CodeOf(err); got != tc.wantCode {
				t.Errorf("code = %q, want %q (err %v)", got, tc.wantCode, err)
			}
			if err.Error() != tc.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestGate_ProjectGrantCarriesOwnerAndOrg(t *testing.T) {
	r := &mockResolver{
		projectRoles: map[string]membership.Role{"p1:owner": membership.RoleAdmin},
		owners:       map[string]string{"p1": "owner"},
	}
	grant, err := newTestGate(t, r).Authorize(actor("owner"), OpProjectUpdate, "p1")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if grant.OwnerID != "owner" || grant.OrgID != "org-1" || grant.Role != membership.RoleAdmin {
		t.Errorf("grant = %+v", grant)
	}
}

func TestGate_ResolverErrorIsInternal(t *testing.T) {
	g := newTestGate(t, &mockResolver{err: errors.New("database error")})
	_, err := g.Authorize(actor("u1"), OpProjectCreate, "org-1")
	if got := apperr.CodeOf(err); got != apperr.CodeInternal {
		t.Errorf("code = %q, want internal", got)
	}
	if apperr.Message(err) == "database error" {
		t.Error("internal cause must not leak into the message")
	}
}

func TestGate_UnknownOperation(t *testing.T) {
	g := newTestGate(t, &mockResolver{})
	if _, err := g.Authorize(actor("u1"), Operation("project.rename"), "p1"); apperr.CodeOf(err) != apperr.CodeInternal {
		t.Errorf("unknown operation err = %v, want internal", err)
	}
}

func TestGate_CustomTable(t *testing.T) {
	table := Table{OpProjectCreate: {Scope: ScopeOrg, Roles: membership.Only(membership.RoleMember)}}
	r := &mockResolver{orgRoles: map[string]membership.Role{
		"org-1:admin":  membership.RoleAdmin,
		"org-1:member": membership.RoleMember,
	}}
	g, err := NewGate(context.Background(), r, table)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if _, err := g.Authorize(actor("member"), OpProjectCreate, "org-1"); err != nil {
		t.Errorf("member: %v", err)
	}
	// Allow-sets are explicit: a higher rank is not implied.
	if _, err := g.Authorize(actor("admin"), OpProjectCreate, "org-1"); apperr.CodeOf(err) != apperr.CodeForbidden {
		t.Errorf("admin err = %v, want forbidden", err)
	}
}

func TestGate_HealthCheck(t *testing.T) {
	if err := newTestGate(t, &mockResolver{}).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestStoreResolver(t *testing.T) {
	f := storetest.New(t).
		User("ann").User("bob").
		Org("o1", "Acme").OrgMember("o1", "ann", membership.RoleAdmin).
		Project("p1", "o1", "ann", "Alpha")
	r := StoreResolver{Reader: f.Store}
	ctx := context.Background()

	if role, err := r.OrgRole(ctx, "o1", "ann"); err != nil || role != membership.RoleAdmin {
		t.Errorf("OrgRole(ann) = %q, %v; want admin", role, err)
	}
	if role, err := r.OrgRole(ctx, "o1", "bob"); err != nil || role != membership.RoleNone {
		t.Errorf("OrgRole(bob) = %q, %v; want none", role, err)
	}
	if _, err := r.OrgRole(ctx, "o2", "ann"); !errors.Is(err, ErrScopeNotFound) {
		t.Errorf("OrgRole(missing) err = %v, want ErrScopeNotFound", err)
	}
	role, owner, org, err := r.ProjectRole(ctx, "p1", "ann")
	if err != nil {
		t.Fatalf("ProjectRole: %v", err)
	}
	if role != membership.RoleAdmin || owner != "ann" || org != "o1" {
		t.Errorf("ProjectRole = %q, %q, %q", role, owner, org)
	}
	if _, _, _, err := r.ProjectRole(ctx, "p2", "ann"); !errors.Is(err, ErrScopeNotFound) {
		t.Errorf("ProjectRole(missing) err = %v, want ErrScopeNotFound", err)
	}
}
