// Package postgres implements store.Store on Postgres through database/sql and the pgx driver.
// Transactions run at SERIALIZABLE isolation and lock the document rows they read with
// SELECT ... FOR UPDATE, so racing cascades on the same documents serialize while cascades over
// disjoint documents proceed concurrently. Serialization failures surface as store.ErrConflict.
//
// A transaction's lifetime is owned by whoever calls Commit or Rollback, not by the context passed
// to Begin; statements inside it still observe their own per-call context.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

// SQLSTATE codes mapped onto store sentinels.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store.
type Store struct {
	db *sql.DB
	queries
}

var _ store.Store = (*Store)(nil)

// New returns a store that uses db for persistence. The caller keeps ownership of db until Close.
func New(db *sql.DB) *Store {
	return &Store{db: db, queries: queries{q: db}}
}

// Begin starts a SERIALIZABLE transaction. Cancelling ctx after Begin returns does not roll the
// transaction back; the caller must end it with Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapErr(err)
	}
	return &Tx{tx: tx, queries: queries{q: tx, lock: true}}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// Tx implements store.Tx.
type Tx struct {
	tx *sql.Tx
	queries
}

func (t *Tx) Commit(ctx context.Context) error {
	return mapErr(t.tx.Commit())
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// mapErr translates driver errors into store sentinels, keeping the original in the chain.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
		}
	}
	return err
}

// queries holds the SQL shared by Store and Tx. lock adds FOR UPDATE to document reads.
type queries struct {
	q    querier
	lock bool
}

func (q queries) forUpdate(query string) string {
	if q.lock {
		return query + " FOR UPDATE"
	}
	return query
}

// ownedEdges returns the edges owned by owner in insertion order.
func (q queries) ownedEdges(ctx context.Context, owner membership.Ref) (membership.Edges, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT peer_kind, peer_id, role FROM membership_edges
		 WHERE owner_kind = $1 AND owner_id = $2 ORDER BY seq`,
		string(owner.Kind), owner.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out membership.Edges
	for rows.Next() {
		var kind, id, role string
		if err := rows.Scan(&kind, &id, &role); err != nil {
			return nil, err
		}
		out = append(out, membership.Edge{
			Owner: owner,
			Peer:  membership.Ref{Kind: membership.Kind(kind), ID: id},
			Role:  membership.Role(role),
		})
	}
	return out, mapErr(rows.Err())
}

func (q queries) GetUser(ctx context.Context, id string) (*userdomain.User, error) {
	return q.scanUser(ctx, q.q.QueryRowContext(ctx, q.forUpdate(
		`SELECT id, email, user_name, password_hash, status, created_at, updated_at FROM users WHERE id = $1`), id))
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return q.scanUser(ctx, q.q.QueryRowContext(ctx, q.forUpdate(
		`SELECT id, email, user_name, password_hash, status, created_at, updated_at FROM users WHERE lower(email) = lower($1)`), email))
}

func (q queries) scanUser(ctx context.Context, row *sql.Row) (*userdomain.User, error) {
	var u userdomain.User
	var status string
	if err := row.Scan(&u.ID, &u.Email, &u.UserName, &u.PasswordHash, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.Status = userdomain.UserStatus(status)
	es, err := q.ownedEdges(ctx, u.Ref())
	if err != nil {
		return nil, err
	}
	u.InOrg = es.OfKind(membership.KindOrg)
	u.InTeam = es.OfKind(membership.KindTeam)
	u.InProject = es.OfKind(membership.KindProject)
	return &u, nil
}

func (q queries) GetOrganization(ctx context.Context, id string) (*orgdomain.Org, error) {
	var o orgdomain.Org
	var status string
	err := q.q.QueryRowContext(ctx, q.forUpdate(
		`SELECT id, name, created_by, status, created_at FROM organizations WHERE id = $1`), id).
		Scan(&o.ID, &o.Name, &o.CreatedBy, &status, &o.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	o.Status = orgdomain.OrgStatus(status)
	es, err := q.ownedEdges(ctx, o.Ref())
	if err != nil {
		return nil, err
	}
	o.Members = es.OfKind(membership.KindUser)
	o.Teams = es.PeerIDs(membership.KindTeam)
	o.Projects = es.PeerIDs(membership.KindProject)

	rows, err := q.q.QueryContext(ctx,
		`SELECT text, actor_id, created_at FROM org_timeline WHERE org_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev orgdomain.TimelineEvent
		if err := rows.Scan(&ev.Text, &ev.ActorID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		o.Timeline = append(o.Timeline, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (q queries) GetTeam(ctx context.Context, id string) (*teamdomain.Team, error) {
	var t teamdomain.Team
	err := q.q.QueryRowContext(ctx, q.forUpdate(
		`SELECT id, org_id, name, created_at FROM teams WHERE id = $1`), id).
		Scan(&t.ID, &t.OrgID, &t.Name, &t.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	es, err := q.ownedEdges(ctx, t.Ref())
	if err != nil {
		return nil, err
	}
	t.Members = es.OfKind(membership.KindUser)
	t.Projects = es.PeerIDs(membership.KindProject)
	return &t, nil
}

func (q queries) GetProject(ctx context.Context, id string) (*projectdomain.Project, error) {
	var p projectdomain.Project
	err := q.q.QueryRowContext(ctx, q.forUpdate(
		`SELECT id, org_id, created_by, name, description, created_at, updated_at FROM projects WHERE id = $1`), id).
		Scan(&p.ID, &p.OrgID, &p.CreatedBy, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	es, err := q.ownedEdges(ctx, p.Ref())
	if err != nil {
		return nil, err
	}
	p.Members = es.OfKind(membership.KindUser)
	p.Teams = es.PeerIDs(membership.KindTeam)
	return &p, nil
}

func (q queries) ListEdgesTo(ctx context.Context, peer membership.Ref, ownerKind membership.Kind) ([]membership.Edge, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT owner_id, role FROM membership_edges
		 WHERE peer_kind = $1 AND peer_id = $2 AND owner_kind = $3 ORDER BY owner_id`,
		string(peer.Kind), peer.ID, string(ownerKind))
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	var out []membership.Edge
	for rows.Next() {
		var id, role string
		if err := rows.Scan(&id, &role); err != nil {
			return nil, err
		}
		out = append(out, membership.Edge{
			Owner: membership.Ref{Kind: ownerKind, ID: id},
			Peer:  peer,
			Role:  membership.Role(role),
		})
	}
	return out, mapErr(rows.Err())
}

func (q queries) CreateUser(ctx context.Context, u *userdomain.User) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO users (id, email, user_name, password_hash, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.UserName, u.PasswordHash, string(u.Status), u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (q queries) CreateOrganization(ctx context.Context, o *orgdomain.Org) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_by, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.Name, o.CreatedBy, string(o.Status), o.CreatedAt)
	return mapErr(err)
}

func (q queries) CreateTeam(ctx context.Context, t *teamdomain.Team) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO teams (id, org_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.OrgID, t.Name, t.CreatedAt)
	return mapErr(err)
}

func (q queries) CreateProject(ctx context.Context, p *projectdomain.Project) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO projects (id, org_id, created_by, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.OrgID, p.CreatedBy, p.Name, p.Description, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

func (q queries) UpdateProject(ctx context.Context, p *projectdomain.Project) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE projects SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(res)
}

// DeleteProject removes the project row and the edges it owns. Edges owned by users and teams
// that point at the project are the caller's to remove.
func (q queries) DeleteProject(ctx context.Context, id string) error {
	if _, err := q.q.ExecContext(ctx,
		`DELETE FROM membership_edges WHERE owner_kind = 'project' AND owner_id = $1`, id); err != nil {
		return mapErr(err)
	}
	res, err := q.q.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return expectOne(res)
}

func (q queries) AddEdge(ctx context.Context, e membership.Edge) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO membership_edges (owner_kind, owner_id, peer_kind, peer_id, role) VALUES ($1, $2, $3, $4, $5)`,
		string(e.Owner.Kind), e.Owner.ID, string(e.Peer.Kind), e.Peer.ID, string(e.Role))
	return mapErr(err)
}

func (q queries) RemoveEdge(ctx context.Context, owner, peer membership.Ref) error {
	_, err := q.q.ExecContext(ctx,
		`DELETE FROM membership_edges WHERE owner_kind = $1 AND owner_id = $2 AND peer_kind = $3 AND peer_id = $4`,
		string(owner.Kind), owner.ID, string(peer.Kind), peer.ID)
	return mapErr(err)
}

func (q queries) AppendTimeline(ctx context.Context, orgID string, ev orgdomain.TimelineEvent) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO org_timeline (org_id, actor_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		orgID, ev.ActorID, ev.Text, ev.CreatedAt)
	return mapErr(err)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
