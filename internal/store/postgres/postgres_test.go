package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"collab-control-plane/backend/internal/db"
	"collab-control-plane/backend/internal/db/migrate"
	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

func TestMapErr(t *testing.T) {
	testCases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, store.ErrConflict},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), store.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: "23505"}, store.ErrDuplicate},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapErr(tc.in); !errors.Is(got, tc.want) {
				t.Errorf("mapErr(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
	if mapErr(nil) != nil {
		t.Error("mapErr(nil) should be nil")
	}
	other := &pgconn.PgError{Code: "42P01"}
	if got := mapErr(other); got != other {
		t.Errorf("mapErr(42P01) = %v, want unchanged", got)
	}
}

func TestForUpdate(t *testing.T) {
	q := queries{lock: true}
	if got := q.forUpdate("SELECT 1"); got != "SELECT 1 FOR UPDATE" {
		t.Errorf("forUpdate = %q", got)
	}
	q.lock = false
	if got := q.forUpdate("SELECT 1"); got != "SELECT 1" {
		t.Errorf("forUpdate = %q", got)
	}
}

// openTestStore connects to DATABASE_URL and migrates it. Skipped when no database is available.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Skipf("migrate failed (expected in test environment): %v", err)
	}
	conn, err := db.Open(context.Background(), dsn, db.Pool{})
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	s := New(conn)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ProjectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	userID, orgID, projectID := "u-"+suffix, "o-"+suffix, "p-"+suffix
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	steps := []func() error{
		func() error {
			return tx.CreateUser(ctx, &userdomain.User{ID: userID, Email: userID + "@example.com", UserName: "u", Status: userdomain.UserStatusActive, CreatedAt: now, UpdatedAt: now})
		},
		func() error {
			return tx.CreateOrganization(ctx, &orgdomain.Org{ID: orgID, Name: "Acme", CreatedBy: userID, Status: orgdomain.OrgStatusActive, CreatedAt: now})
		},
		func() error {
			return tx.CreateProject(ctx, &projectdomain.Project{ID: projectID, OrgID: orgID, CreatedBy: userID, Name: "Alpha", CreatedAt: now, UpdatedAt: now})
		},
		func() error {
			return tx.AddEdge(ctx, membership.Edge{Owner: membership.ProjectRef(projectID), Peer: membership.UserRef(userID), Role: membership.RoleAdmin})
		},
		func() error {
			return tx.AddEdge(ctx, membership.Edge{Owner: membership.UserRef(userID), Peer: membership.ProjectRef(projectID), Role: membership.RoleAdmin})
		},
		func() error {
			return tx.AddEdge(ctx, membership.Edge{Owner: membership.OrgRef(orgID), Peer: membership.ProjectRef(projectID)})
		},
		func() error {
			return tx.AppendTimeline(ctx, orgID, orgdomain.TimelineEvent{Text: "created", ActorID: userID, CreatedAt: now})
		},
	}
	for i, step := range steps {
		if err := step(); err != nil {
			_ = tx.Rollback(ctx)
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if role, ok := p.RoleOf(userID); !ok || role != membership.RoleAdmin {
		t.Errorf("owner role = %q, %v; want admin", role, ok)
	}
	o, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if !o.HasProject(projectID) || len(o.Timeline) != 1 {
		t.Errorf("org projects = %v, timeline = %d", o.Projects, len(o.Timeline))
	}

	tx, err = s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.AddEdge(ctx, membership.Edge{Owner: membership.OrgRef(orgID), Peer: membership.ProjectRef(projectID)}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("duplicate AddEdge: err = %v, want ErrDuplicate", err)
	}
	_ = tx.Rollback(ctx)
}
