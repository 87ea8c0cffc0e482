package memory

import (
	"fmt"
	"sort"
	"strings"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

// kindEmail versions the email index so concurrent registrations of one address conflict.
const kindEmail membership.Kind = "email"

func emailRef(email string) membership.Ref {
	return membership.Ref{Kind: kindEmail, ID: strings.ToLower(email)}
}

// state is the whole data set. Document rows are stored without edges; edges are kept per owner.
type state struct {
	users    map[string]userdomain.User
	emails   map[string]string
	orgs     map[string]orgdomain.Org
	teams    map[string]teamdomain.Team
	projects map[string]projectdomain.Project
	edges    map[membership.Ref]membership.Edges
	versions map[membership.Ref]uint64
}

func newState() *state {
	return &state{
		users:    make(map[string]userdomain.User),
		emails:   make(map[string]string),
		orgs:     make(map[string]orgdomain.Org),
		teams:    make(map[string]teamdomain.Team),
		projects: make(map[string]projectdomain.Project),
		edges:    make(map[membership.Ref]membership.Edges),
		versions: make(map[membership.Ref]uint64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.orgs {
		v.Timeline = append([]orgdomain.TimelineEvent(nil), v.Timeline...)
		c.orgs[k] = v
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.edges {
		c.edges[k] = v.Clone()
	}
	for k, v := range s.versions {
		c.versions[k] = v
	}
	return c
}

// copyFrom replaces everything stored under ref with src's copy.
func (s *state) copyFrom(src *state, ref membership.Ref) {
	switch ref.Kind {
	case membership.KindUser:
		if row, ok := src.users[ref.ID]; ok {
			s.users[ref.ID] = row
		} else {
			delete(s.users, ref.ID)
		}
	case membership.KindOrg:
		if row, ok := src.orgs[ref.ID]; ok {
			s.orgs[ref.ID] = row
		} else {
			delete(s.orgs, ref.ID)
		}
	case membership.KindTeam:
		if row, ok := src.teams[ref.ID]; ok {
			s.teams[ref.ID] = row
		} else {
			delete(s.teams, ref.ID)
		}
	case membership.KindProject:
		if row, ok := src.projects[ref.ID]; ok {
			s.projects[ref.ID] = row
		} else {
			delete(s.projects, ref.ID)
		}
	case kindEmail:
		if id, ok := src.emails[ref.ID]; ok {
			s.emails[ref.ID] = id
		} else {
			delete(s.emails, ref.ID)
		}
		return
	}
	if es, ok := src.edges[ref]; ok {
		s.edges[ref] = es
	} else {
		delete(s.edges, ref)
	}
}

func (s *state) user(id string) (*userdomain.User, error) {
	row, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := row
	es := s.edges[membership.UserRef(id)]
	u.InOrg = es.OfKind(membership.KindOrg)
	u.InTeam = es.OfKind(membership.KindTeam)
	u.InProject = es.OfKind(membership.KindProject)
	return &u, nil
}

func (s *state) userByEmail(email string) (*userdomain.User, error) {
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.user(id)
}

func (s *state) org(id string) (*orgdomain.Org, error) {
	row, ok := s.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o := row
	o.Timeline = append([]orgdomain.TimelineEvent(nil), row.Timeline...)
	es := s.edges[membership.OrgRef(id)]
	o.Members = es.OfKind(membership.KindUser)
	o.Teams = es.PeerIDs(membership.KindTeam)
	o.Projects = es.PeerIDs(membership.KindProject)
	return &o, nil
}

func (s *state) team(id string) (*teamdomain.Team, error) {
	row, ok := s.teams[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := row
	es := s.edges[membership.TeamRef(id)]
	t.Members = es.OfKind(membership.KindUser)
	t.Projects = es.PeerIDs(membership.KindProject)
	return &t, nil
}

func (s *state) project(id string) (*projectdomain.Project, error) {
	row, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := row
	es := s.edges[membership.ProjectRef(id)]
	p.Members = es.OfKind(membership.KindUser)
	p.Teams = es.PeerIDs(membership.KindTeam)
	return &p, nil
}

// edgesTo scans every owner of ownerKind for an edge to peer. Results are ordered by owner id.
func (s *state) edgesTo(peer membership.Ref, ownerKind membership.Kind) []membership.Edge {
	var out []membership.Edge
	for owner, es := range s.edges {
		if owner.Kind != ownerKind {
			continue
		}
		if e, ok := es.Find(peer); ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.ID < out[j].Owner.ID })
	return out
}

func (s *state) createUser(u *userdomain.User) error {
	key := strings.ToLower(u.Email)
	if _, ok := s.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.emails[key]; ok {
		return store.ErrDuplicate
	}
	row := *u
	row.InOrg, row.InTeam, row.InProject = nil, nil, nil
	s.users[u.ID] = row
	s.emails[key] = u.ID
	return nil
}

func (s *state) createOrg(o *orgdomain.Org) error {
	if _, ok := s.orgs[o.ID]; ok {
		return store.ErrDuplicate
	}
	row := *o
	row.Members, row.Teams, row.Projects = nil, nil, nil
	row.Timeline = append([]orgdomain.TimelineEvent(nil), o.Timeline...)
	s.orgs[o.ID] = row
	return nil
}

func (s *state) createTeam(t *teamdomain.Team) error {
	if _, ok := s.teams[t.ID]; ok {
		return store.ErrDuplicate
	}
	row := *t
	row.Members, row.Projects = nil, nil
	s.teams[t.ID] = row
	return nil
}

func (s *state) createProject(p *projectdomain.Project) error {
	if _, ok := s.projects[p.ID]; ok {
		return store.ErrDuplicate
	}
	row := *p
	row.Members, row.Teams = nil, nil
	s.projects[p.ID] = row
	return nil
}

func (s *state) updateProject(p *projectdomain.Project) error {
	row, ok := s.projects[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	row.Name = p.Name
	row.Description = p.Description
	row.UpdatedAt = p.UpdatedAt
	s.projects[p.ID] = row
	return nil
}

// deleteProject removes the project row and its owned edges and returns the peers of those edges.
func (s *state) deleteProject(id string) ([]membership.Ref, error) {
	if _, ok := s.projects[id]; !ok {
		return nil, store.ErrNotFound
	}
	ref := membership.ProjectRef(id)
	var peers []membership.Ref
	for _, e := range s.edges[ref] {
		peers = append(peers, e.Peer)
	}
	delete(s.projects, id)
	delete(s.edges, ref)
	return peers, nil
}

func (s *state) addEdge(e membership.Edge) error {
	es, err := s.edges[e.Owner].Add(e)
	if err != nil {
		return store.ErrDuplicate
	}
	s.edges[e.Owner] = es
	return nil
}

func (s *state) removeEdge(owner, peer membership.Ref) {
	es := s.edges[owner].Remove(peer)
	if len(es) == 0 {
		delete(s.edges, owner)
		return
	}
	s.edges[owner] = es
}

func (s *state) appendTimeline(orgID string, ev orgdomain.TimelineEvent) error {
	row, ok := s.orgs[orgID]
	if !ok {
		return store.ErrNotFound
	}
	row.Timeline = append(row.Timeline, ev)
	s.orgs[orgID] = row
	return nil
}

// fingerprint renders every document, edge and timeline entry in a stable order.
// Versions are excluded: they count commits, not content.
func (s *state) fingerprint() string {
	var lines []string
	for id, u := range s.users {
		lines = append(lines, fmt.Sprintf("user %s %s %s %s %s", id, u.Email, u.UserName, u.PasswordHash, u.Status))
	}
	for id, o := range s.orgs {
		lines = append(lines, fmt.Sprintf("org %s %s %s %s", id, o.Name, o.CreatedBy, o.Status))
		for i, ev := range o.Timeline {
			lines = append(lines, fmt.Sprintf("timeline %s %03d %s %s %s", id, i, ev.ActorID, ev.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000"), ev.Text))
		}
	}
	for id, t := range s.teams {
		lines = append(lines, fmt.Sprintf("team %s %s %s", id, t.OrgID, t.Name))
	}
	for id, p := range s.projects {
		lines = append(lines, fmt.Sprintf("project %s %s %s %s %s %s", id, p.OrgID, p.CreatedBy, p.Name, p.Description, p.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000000000")))
	}
	for owner, es := range s.edges {
		for i, e := range es {
			lines = append(lines, fmt.Sprintf("edge %s %03d %s", owner, i, e))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
