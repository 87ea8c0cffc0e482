// Package storetest builds in-memory data sets for tests. For tests only.
package storetest

import (
	"context"
	"testing"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/store/memory"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

// Epoch is the fixed creation time used for seeded documents.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Fixture seeds a memory store. Each call commits immediately and fails the test on error.
type Fixture struct {
	t     testing.TB
	Store *memory.Store
}

// New returns a fixture over an empty memory store.
func New(t testing.TB) *Fixture {
	return &Fixture{t: t, Store: memory.New()}
}

func (f *Fixture) do(fn func(ctx context.Context, tx store.Tx) error) {
	f.t.Helper()
	ctx := context.Background()
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		f.t.Fatalf("storetest: begin: %v", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		f.t.Fatalf("storetest: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		f.t.Fatalf("storetest: commit: %v", err)
	}
}

func link(ctx context.Context, tx store.Tx, a, b membership.Ref, role membership.Role) error {
	for _, e := range membership.Link(a, b, role) {
		if err := tx.AddEdge(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// User creates a user named id with email id@example.com.
func (f *Fixture) User(id string) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, &userdomain.User{
			ID: id, Email: id + "@example.com", UserName: id, Status: userdomain.UserStatusActive, CreatedAt: Epoch, UpdatedAt: Epoch,
		})
	})
	return f
}

// Org creates an org with no members.
func (f *Fixture) Org(id, name string) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return tx.CreateOrganization(ctx, &orgdomain.Org{ID: id, Name: name, Status: orgdomain.OrgStatusActive, CreatedAt: Epoch})
	})
	return f
}

// OrgMember links userID to orgID in both directions.
func (f *Fixture) OrgMember(orgID, userID string, role membership.Role) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return link(ctx, tx, membership.OrgRef(orgID), membership.UserRef(userID), role)
	})
	return f
}

// Team creates a team inside orgID and lists it on the org.
func (f *Fixture) Team(id, orgID, name string) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateTeam(ctx, &teamdomain.Team{ID: id, OrgID: orgID, Name: name, CreatedAt: Epoch}); err != nil {
			return err
		}
		return tx.AddEdge(ctx, membership.Edge{Owner: membership.OrgRef(orgID), Peer: membership.TeamRef(id)})
	})
	return f
}

// TeamMember links userID to teamID in both directions.
func (f *Fixture) TeamMember(teamID, userID string, role membership.Role) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return link(ctx, tx, membership.TeamRef(teamID), membership.UserRef(userID), role)
	})
	return f
}

// Project creates a consistent project owned by ownerID: owner admin edges and the org list entry.
func (f *Fixture) Project(id, orgID, ownerID, name string) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		p := &projectdomain.Project{ID: id, OrgID: orgID, CreatedBy: ownerID, Name: name, CreatedAt: Epoch, UpdatedAt: Epoch}
		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}
		if err := link(ctx, tx, p.Ref(), membership.UserRef(ownerID), membership.RoleAdmin); err != nil {
			return err
		}
		return tx.AddEdge(ctx, membership.Edge{Owner: membership.OrgRef(orgID), Peer: p.Ref()})
	})
	return f
}

// ProjectMember links userID to projectID in both directions.
func (f *Fixture) ProjectMember(projectID, userID string, role membership.Role) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return link(ctx, tx, membership.ProjectRef(projectID), membership.UserRef(userID), role)
	})
	return f
}

// ProjectTeam links teamID to projectID in both directions.
func (f *Fixture) ProjectTeam(projectID, teamID string) *Fixture {
	f.t.Helper()
	f.do(func(ctx context.Context, tx store.Tx) error {
		return link(ctx, tx, membership.ProjectRef(projectID), membership.TeamRef(teamID), membership.RoleNone)
	})
	return f
}

// AssertProjectConsistent fails the test unless every project member has a matching inProject edge
// with the same role, and every inProject edge to the project has a matching member entry.
func AssertProjectConsistent(t testing.TB, s store.Reader, projectID string) {
	t.Helper()
	ctx := context.Background()
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("GetProject(%s): %v", projectID, err)
	}
	for _, m := range p.Members {
		u, err := s.GetUser(ctx, m.Peer.ID)
		if err != nil {
			t.Fatalf("GetUser(%s): %v", m.Peer.ID, err)
		}
		role, ok := u.InProject.RoleOf(p.Ref())
		if !ok {
			t.Errorf("user %s is a member of %s but has no inProject entry", m.Peer.ID, projectID)
			continue
		}
		if role != m.Role {
			t.Errorf("user %s role = %q in inProject, %q in members", m.Peer.ID, role, m.Role)
		}
	}
	back, err := s.ListEdgesTo(ctx, p.Ref(), membership.KindUser)
	if err != nil {
		t.Fatalf("ListEdgesTo: %v", err)
	}
	for _, e := range back {
		if !p.Members.Has(e.Owner) {
			t.Errorf("user %s lists %s in inProject but is not a member", e.Owner.ID, projectID)
		}
	}
}
