package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateEdge is returned when an edge with the same owner and peer already exists.
var ErrDuplicateEdge = errors.New("membership: edge already exists")

// Role is a named permission level scoped to an org, team or project.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleLeader    Role = "leader"
	RoleMember    Role = "member"
	// RoleNone marks structural links (org→project, team↔project) that carry no permission.
	RoleNone Role = ""
)

// roleRank orders roles admin > moderator > leader > member.
var roleRank = map[Role]int{
	RoleMember:    1,
	RoleLeader:    2,
	RoleModerator: 3,
	RoleAdmin:     4,
}

// orderedRoles lists every permission role from highest to lowest.
var orderedRoles = []Role{RoleAdmin, RoleModerator, RoleLeader, RoleMember}

// Rank returns the position of r in the permission order, or 0 for unknown roles.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is one of the permission roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// ParseRole returns the role named by s. An empty s yields def.
func ParseRole(s string, def Role) (Role, error) {
	if s == "" {
		return def, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// RoleSet is an explicit allow-list of roles.
type RoleSet []Role

// AtLeast returns every role whose rank is greater than or equal to min, highest first.
func AtLeast(min Role) RoleSet {
	var out RoleSet
	for _, r := range orderedRoles {
		if r.Rank() >= min.Rank() {
			out = append(out, r)
		}
	}
	return out
}

// Only returns a set holding exactly the given roles.
func Only(roles ...Role) RoleSet {
	return append(RoleSet(nil), roles...)
}

// Contains reports whether r is in the set.
func (s RoleSet) Contains(r Role) bool {
	for _, x := range s {
		if x == r {
			return true
		}
	}
	return false
}

// Strings returns the role names in set order.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Kind names one of the four collections an edge endpoint can live in.
type Kind string

const (
	KindUser    Kind = "user"
	KindOrg     Kind = "org"
	KindTeam    Kind = "team"
	KindProject Kind = "project"
)

// Ref is a weak reference to a document: its collection and id.
type Ref struct {
	Kind Kind
	ID   string
}

func UserRef(id string) Ref    { return Ref{Kind: KindUser, ID: id} }
func OrgRef(id string) Ref     { return Ref{Kind: KindOrg, ID: id} }
func TeamRef(id string) Ref    { return Ref{Kind: KindTeam, ID: id} }
func ProjectRef(id string) Ref { return Ref{Kind: KindProject, ID: id} }

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

// Edge is one direction of a membership: Owner records Peer with Role.
type Edge struct {
	Owner Ref
	Peer  Ref
	Role  Role
}

func (e Edge) String() string {
	if e.Role == RoleNone {
		return e.Owner.String() + "->" + e.Peer.String()
	}
	return e.Owner.String() + "->" + e.Peer.String() + "(" + string(e.Role) + ")"
}

// Link returns the two edges realizing one bidirectional membership between a and b.
// The a-side edge comes first.
func Link(a, b Ref, role Role) [2]Edge {
	return [2]Edge{
		{Owner: a, Peer: b, Role: role},
		{Owner: b, Peer: a, Role: role},
	}
}

// Edges is an ordered set of edges sharing one owner, keyed by peer.
type Edges []Edge

// Find returns the edge to peer, if present.
func (es Edges) Find(peer Ref) (Edge, bool) {
	for _, e := range es {
		if e.Peer == peer {
			return e, true
		}
	}
	return Edge{}, false
}

// Has reports whether an edge to peer exists.
func (es Edges) Has(peer Ref) bool {
	_, ok := es.Find(peer)
	return ok
}

// RoleOf returns the role recorded for peer and whether peer is present.
func (es Edges) RoleOf(peer Ref) (Role, bool) {
	e, ok := es.Find(peer)
	return e.Role, ok
}

// Add appends e. It returns ErrDuplicateEdge and leaves the set unchanged if the peer is already present.
func (es Edges) Add(e Edge) (Edges, error) {
	if es.Has(e.Peer) {
		return es, ErrDuplicateEdge
	}
	return append(es, e), nil
}

// Remove drops the edge to peer. Removing an absent peer returns the set unchanged.
func (es Edges) Remove(peer Ref) Edges {
	out := make(Edges, 0, len(es))
	for _, e := range es {
		if e.Peer != peer {
			out = append(out, e)
		}
	}
	return out
}

// PeerIDs returns the ids of peers of the given kind, in insertion order.
func (es Edges) PeerIDs(kind Kind) []string {
	var out []string
	for _, e := range es {
		if e.Peer.Kind == kind {
			out = append(out, e.Peer.ID)
		}
	}
	return out
}

// OfKind returns the edges whose peer is of the given kind, in insertion order.
func (es Edges) OfKind(kind Kind) Edges {
	var out Edges
	for _, e := range es {
		if e.Peer.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a copy that shares no backing array with es.
func (es Edges) Clone() Edges {
	if es == nil {
		return nil
	}
	return append(Edges(nil), es...)
}
