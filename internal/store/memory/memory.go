// Package memory is an in-process store.Store. Each transaction works on a private clone of the
// data set and commits by validating the versions of every document it read or wrote; a clash
// fails the commit with store.ErrConflict. The store mutex is held only to clone and to
// validate-and-copy, so cascades over disjoint documents never wait on each other's work.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

var errTxDone = errors.New("memory: transaction already committed or rolled back")

// Store implements store.Store in memory.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *Store) GetUser(ctx context.Context, id string) (u *userdomain.User, err error) {
	err = s.read(func(st *state) error { u, err = st.user(id); return err })
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (u *userdomain.User, err error) {
	err = s.read(func(st *state) error { u, err = st.userByEmail(email); return err })
	return u, err
}

func (s *Store) GetOrganization(ctx context.Context, id string) (o *orgdomain.Org, err error) {
	err = s.read(func(st *state) error { o, err = st.org(id); return err })
	return o, err
}

func (s *Store) GetTeam(ctx context.Context, id string) (t *teamdomain.Team, err error) {
	err = s.read(func(st *state) error { t, err = st.team(id); return err })
	return t, err
}

func (s *Store) GetProject(ctx context.Context, id string) (p *projectdomain.Project, err error) {
	err = s.read(func(st *state) error { p, err = st.project(id); return err })
	return p, err
}

func (s *Store) ListEdgesTo(ctx context.Context, peer membership.Ref, ownerKind membership.Kind) (out []membership.Edge, err error) {
	err = s.read(func(st *state) error { out = st.edgesTo(peer, ownerKind); return nil })
	return out, err
}

// Begin starts a transaction on a private clone of the current data set.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	st := s.state.clone()
	s.mu.RUnlock()
	return &Tx{
		s:     s,
		st:    st,
		seen:  make(map[membership.Ref]uint64),
		dirty: make(map[membership.Ref]bool),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// Fingerprint renders the committed content in a stable textual form, for comparing states.
func (s *Store) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.fingerprint()
}

// Tx implements store.Tx.
type Tx struct {
	s  *Store
	st *state
	// seen holds the version of each document at the moment this transaction first touched it.
	seen  map[membership.Ref]uint64
	dirty map[membership.Ref]bool
	done  bool
}

func (t *Tx) touch(refs ...membership.Ref) {
	for _, ref := range refs {
		if _, ok := t.seen[ref]; !ok {
			t.seen[ref] = t.st.versions[ref]
		}
	}
}

func (t *Tx) write(refs ...membership.Ref) {
	t.touch(refs...)
	for _, ref := range refs {
		t.dirty[ref] = true
	}
}

func (t *Tx) check(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	return ctx.Err()
}

func (t *Tx) GetUser(ctx context.Context, id string) (*userdomain.User, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(membership.UserRef(id))
	return t.st.user(id)
}

func (t *Tx) GetUserByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(emailRef(email))
	u, err := t.st.userByEmail(email)
	if err != nil {
		return nil, err
	}
	t.touch(u.Ref())
	return u, nil
}

func (t *Tx) GetOrganization(ctx context.Context, id string) (*orgdomain.Org, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(membership.OrgRef(id))
	return t.st.org(id)
}

func (t *Tx) GetTeam(ctx context.Context, id string) (*teamdomain.Team, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(membership.TeamRef(id))
	return t.st.team(id)
}

func (t *Tx) GetProject(ctx context.Context, id string) (*projectdomain.Project, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(membership.ProjectRef(id))
	return t.st.project(id)
}

// ListEdgesTo records peer as read: every edge write bumps the peer's version as well as the owner's.
func (t *Tx) ListEdgesTo(ctx context.Context, peer membership.Ref, ownerKind membership.Kind) ([]membership.Edge, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	t.touch(peer)
	return t.st.edgesTo(peer, ownerKind), nil
}

func (t *Tx) CreateUser(ctx context.Context, u *userdomain.User) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(u.Ref(), emailRef(u.Email))
	return t.st.createUser(u)
}

func (t *Tx) CreateOrganization(ctx context.Context, o *orgdomain.Org) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(o.Ref())
	return t.st.createOrg(o)
}

func (t *Tx) CreateTeam(ctx context.Context, tm *teamdomain.Team) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(tm.Ref())
	return t.st.createTeam(tm)
}

func (t *Tx) CreateProject(ctx context.Context, p *projectdomain.Project) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(p.Ref())
	return t.st.createProject(p)
}

func (t *Tx) UpdateProject(ctx context.Context, p *projectdomain.Project) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(p.Ref())
	return t.st.updateProject(p)
}

func (t *Tx) DeleteProject(ctx context.Context, id string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(membership.ProjectRef(id))
	peers, err := t.st.deleteProject(id)
	if err != nil {
		return err
	}
	t.write(peers...)
	return nil
}

func (t *Tx) AddEdge(ctx context.Context, e membership.Edge) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(e.Owner, e.Peer)
	return t.st.addEdge(e)
}

func (t *Tx) RemoveEdge(ctx context.Context, owner, peer membership.Ref) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(owner, peer)
	t.st.removeEdge(owner, peer)
	return nil
}

func (t *Tx) AppendTimeline(ctx context.Context, orgID string, ev orgdomain.TimelineEvent) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	t.write(membership.OrgRef(orgID))
	return t.st.appendTimeline(orgID, ev)
}

// Commit validates that nothing this transaction touched changed since it began, then publishes
// its writes. A stale read fails with store.ErrConflict and publishes nothing.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	t.done = true
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for ref, v := range t.seen {
		if t.s.state.versions[ref] != v {
			return fmt.Errorf("%w: %s changed concurrently", store.ErrConflict, ref)
		}
	}
	for ref := range t.dirty {
		t.s.state.copyFrom(t.st, ref)
		t.s.state.versions[ref]++
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	t.done = true
	t.st = newState()
	return nil
}
