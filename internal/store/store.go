// Package store defines persistence for the four collections (users, orgs, teams, projects) and
// the membership edges between them. Implementations live in store/postgres and store/memory.
package store

import (
	"context"
	"errors"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a transaction lost a race with a concurrent one and may be retried.
	ErrConflict = errors.New("store: transaction conflict")
	// ErrDuplicate is returned when a unique key (document id, email, edge) already exists.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Reader loads documents with their edges assembled. Inside a Tx, reads lock the rows they return.
type Reader interface {
	GetUser(ctx context.Context, id string) (*userdomain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*userdomain.User, error)
	GetOrganization(ctx context.Context, id string) (*orgdomain.Org, error)
	GetTeam(ctx context.Context, id string) (*teamdomain.Team, error)
	GetProject(ctx context.Context, id string) (*projectdomain.Project, error)
	// ListEdgesTo returns every edge whose peer is peer and whose owner is of ownerKind.
	ListEdgesTo(ctx context.Context, peer membership.Ref, ownerKind membership.Kind) ([]membership.Edge, error)
}

// Writer mutates documents and edges. Document writes never touch edges except DeleteProject,
// which also drops the edges the project owns.
type Writer interface {
	CreateUser(ctx context.Context, u *userdomain.User) error
	CreateOrganization(ctx context.Context, o *orgdomain.Org) error
	CreateTeam(ctx context.Context, t *teamdomain.Team) error
	CreateProject(ctx context.Context, p *projectdomain.Project) error
	UpdateProject(ctx context.Context, p *projectdomain.Project) error
	DeleteProject(ctx context.Context, id string) error
	// AddEdge inserts e. Returns ErrDuplicate if (owner, peer) already exists.
	AddEdge(ctx context.Context, e membership.Edge) error
	// RemoveEdge deletes the (owner, peer) edge. Removing an absent edge is not an error.
	RemoveEdge(ctx context.Context, owner, peer membership.Ref) error
	AppendTimeline(ctx context.Context, orgID string, ev orgdomain.TimelineEvent) error
}

// Tx is one multi-document transaction. Writes are invisible to other readers until Commit.
type Tx interface {
	Reader
	Writer
	Commit(ctx context.Context) error
	// Rollback discards all writes. Safe to call after Commit or a previous Rollback.
	Rollback(ctx context.Context) error
}

// Store is a handle to the data store.
type Store interface {
	Reader
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close() error
}
