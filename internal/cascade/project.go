package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	projectdomain "collab-control-plane/backend/internal/project/domain"
	"collab-control-plane/backend/internal/store"
	teamdomain "collab-control-plane/backend/internal/team/domain"
)

const (
	msgProjectNotFound   = "Project not found"
	msgInvalidMemberID   = "Invalid member ID"
	msgInvalidTeamID     = "Invalid team ID"
	msgInvalidRole       = "Invalid role"
	msgMemberNotInOrg    = "Member not part of this organization"
	msgMemberInProject   = "Member is already part of this project"
	msgTeamNotInOrg      = "Team not found in this organization"
	msgTeamInProject     = "Team is already in this project"
	msgOwnerNotRemovable = "Project owner cannot be removed from the project"
)

// CreateProjectInput describes a new project. ProjectID is allocated by the caller.
type CreateProjectInput struct {
	ProjectID   string
	OrgID       string
	ActorID     string
	Name        string
	Description string
	Now         time.Time
}

// CreateProject plans a project owned by the actor: the project row, the owner's admin membership
// on both sides, the org's project list entry and a timeline event. Result is the new project.
func CreateProject(ctx context.Context, r store.Reader, in CreateProjectInput) (*Plan, error) {
	p := &projectdomain.Project{
		ID:          in.ProjectID,
		OrgID:       in.OrgID,
		CreatedBy:   in.ActorID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		CreatedAt:   in.Now,
		UpdatedAt:   in.Now,
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, err := r.GetOrganization(ctx, in.OrgID); err != nil {
		return nil, err
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	plan := newPlan("create project")
	row := *p
	plan.add("create project "+p.ID, func(ctx context.Context, w store.Writer) error {
		return w.CreateProject(ctx, &row)
	})
	plan.link(p.Ref(), actor.Ref(), membership.RoleAdmin)
	plan.addEdge(membership.Edge{Owner: membership.OrgRef(p.OrgID), Peer: p.Ref()})
	plan.timeline(p.OrgID, orgdomain.TimelineEvent{
		Text:      fmt.Sprintf("<b>%s</b> created a project - <i>%s</i>.", actor.UserName, p.Name),
		ActorID:   actor.ID,
		CreatedAt: in.Now,
	})

	p.Members = membership.Edges{{Owner: p.Ref(), Peer: actor.Ref(), Role: membership.RoleAdmin}}
	plan.Result = p
	return plan, nil
}

// UpdateProjectInput carries the editable project fields. Empty fields are left unchanged.
type UpdateProjectInput struct {
	ProjectID   string
	Name        string
	Description string
	Now         time.Time
}

// UpdateProject plans a name and description change. No edges are touched.
func UpdateProject(ctx context.Context, r store.Reader, in UpdateProjectInput) (*Plan, error) {
	p, err := getProject(ctx, r, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		p.Name = name
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	p.UpdatedAt = in.Now

	plan := newPlan("update project")
	row := p.Clone()
	plan.add("update project "+p.ID, func(ctx context.Context, w store.Writer) error {
		return w.UpdateProject(ctx, row)
	})
	plan.Result = p
	return plan, nil
}

// DeleteProjectInput identifies the project to delete. Ownership is checked before planning.
type DeleteProjectInput struct {
	ProjectID string
	ActorID   string
	Now       time.Time
}

// DeleteProject plans the removal of a project and every edge that points at it: the org's list
// entry, each user's and each team's reference, then the project row with its own edges. Members
// and teams are gathered from both sides so a half-written link from an earlier failure is purged too.
func DeleteProject(ctx context.Context, r store.Reader, in DeleteProjectInput) (*Plan, error) {
	p, err := getProject(ctx, r, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if _, err := r.GetOrganization(ctx, p.OrgID); err != nil {
		return nil, err
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	userRefs, err := peersOf(ctx, r, p.Ref(), membership.KindUser, p.Members.PeerIDs(membership.KindUser))
	if err != nil {
		return nil, err
	}
	teamRefs, err := peersOf(ctx, r, p.Ref(), membership.KindTeam, p.Teams)
	if err != nil {
		return nil, err
	}

	plan := newPlan("delete project")
	plan.removeEdge(membership.OrgRef(p.OrgID), p.Ref())
	plan.timeline(p.OrgID, orgdomain.TimelineEvent{
		Text:      fmt.Sprintf("<b>%s</b> delete the project - <i>%s</i>", actor.UserName, p.Name),
		ActorID:   actor.ID,
		CreatedAt: in.Now,
	})
	for _, ref := range userRefs {
		plan.removeEdge(ref, p.Ref())
	}
	for _, ref := range teamRefs {
		plan.removeEdge(ref, p.Ref())
	}
	id := p.ID
	plan.add("delete project "+id, func(ctx context.Context, w store.Writer) error {
		return w.DeleteProject(ctx, id)
	})
	return plan, nil
}

// AddMemberInput adds one org member to a project. AsRoleOf defaults to member.
type AddMemberInput struct {
	ProjectID string
	MemberID  string
	AsRoleOf  string
	ActorID   string
}

// AddMember plans a single membership, project side first. The added user is notified.
func AddMember(ctx context.Context, r store.Reader, in AddMemberInput) (*Plan, error) {
	if strings.TrimSpace(in.MemberID) == "" {
		return nil, apperr.Validation(msgInvalidMemberID)
	}
	role, err := membership.ParseRole(in.AsRoleOf, membership.RoleMember)
	if err != nil {
		return nil, apperr.Validation(msgInvalidRole)
	}
	p, err := getProject(ctx, r, in.ProjectID)
	if err != nil {
		return nil, err
	}
	org, err := r.GetOrganization(ctx, p.OrgID)
	if err != nil {
		return nil, err
	}
	if _, ok := org.RoleOf(in.MemberID); !ok {
		return nil, apperr.NotFoundInOrg(msgMemberNotInOrg)
	}
	if _, ok := p.RoleOf(in.MemberID); ok {
		return nil, apperr.DuplicateMembership(msgMemberInProject)
	}
	member, err := r.GetUser(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	plan := newPlan("add member")
	plan.link(p.Ref(), member.Ref(), role)
	plan.Events = append(plan.Events, addedEvent(p, org, actor.UserName, recipient(member.ID, member.Email, member.UserName)))

	p.Members, _ = p.Members.Add(membership.Edge{Owner: p.Ref(), Peer: member.Ref(), Role: role})
	plan.Result = p
	return plan, nil
}

// AddTeamInput links a team of the project's org to the project. AsRoleOf is the role given to
// team members who join the project through the link; it defaults to member.
type AddTeamInput struct {
	ProjectID string
	TeamID    string
	AsRoleOf  string
	ActorID   string
}

// AddTeamResult is the outcome of AddTeam.
type AddTeamResult struct {
	Project *projectdomain.Project
	Team    *teamdomain.Team
	// Added lists the users who became project members, in team order.
	Added []string
}

// AddTeam plans the project-team link and merges the team's current members into the project.
// Members are visited in team order against a set seeded with the existing project members, so
// users already in the project keep their role and each new user is added exactly once. Only new
// members are notified.
func AddTeam(ctx context.Context, r store.Reader, in AddTeamInput) (*Plan, error) {
	if strings.TrimSpace(in.TeamID) == "" {
		return nil, apperr.Validation(msgInvalidTeamID)
	}
	role, err := membership.ParseRole(in.AsRoleOf, membership.RoleMember)
	if err != nil {
		return nil, apperr.Validation(msgInvalidRole)
	}
	p, err := getProject(ctx, r, in.ProjectID)
	if err != nil {
		return nil, err
	}
	team, err := r.GetTeam(ctx, in.TeamID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && team.OrgID != p.OrgID) {
		return nil, apperr.NotFound(msgTeamNotInOrg)
	}
	if err != nil {
		return nil, err
	}
	if p.HasTeam(team.ID) {
		return nil, apperr.DuplicateTeam(msgTeamInProject)
	}
	org, err := r.GetOrganization(ctx, p.OrgID)
	if err != nil {
		return nil, err
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	plan := newPlan("add team")
	plan.link(p.Ref(), team.Ref(), membership.RoleNone)

	seen := make(map[string]bool, len(p.Members))
	for _, id := range p.Members.PeerIDs(membership.KindUser) {
		seen[id] = true
	}
	var added []string
	for _, tm := range team.Members {
		if tm.Peer.Kind != membership.KindUser || seen[tm.Peer.ID] {
			continue
		}
		seen[tm.Peer.ID] = true
		u, err := r.GetUser(ctx, tm.Peer.ID)
		if err != nil {
			return nil, err
		}
		plan.link(p.Ref(), u.Ref(), role)
		plan.Events = append(plan.Events, addedEvent(p, org, actor.UserName, recipient(u.ID, u.Email, u.UserName)))
		p.Members = append(p.Members, membership.Edge{Owner: p.Ref(), Peer: u.Ref(), Role: role})
		added = append(added, u.ID)
	}
	p.Teams = append(p.Teams, team.ID)

	plan.Result = &AddTeamResult{Project: p, Team: team, Added: added}
	return plan, nil
}

// RemoveMemberInput removes one user from a project.
type RemoveMemberInput struct {
	ProjectID string
	MemberID  string
}

// RemoveMember plans the removal of both membership edges. Removing a user who is not a member
// produces an empty plan. The owner cannot be removed.
func RemoveMember(ctx context.Context, r store.Reader, in RemoveMemberInput) (*Plan, error) {
	if strings.TrimSpace(in.MemberID) == "" {
		return nil, apperr.Validation(msgInvalidMemberID)
	}
	p, err := getProject(ctx, r, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if in.MemberID == p.CreatedBy {
		return nil, apperr.Forbidden(msgOwnerNotRemovable)
	}

	plan := newPlan("remove member")
	ref := membership.UserRef(in.MemberID)
	if p.Members.Has(ref) {
		plan.removeEdge(p.Ref(), ref)
		plan.removeEdge(ref, p.Ref())
		p.Members = p.Members.Remove(ref)
	}
	plan.Result = p
	return plan, nil
}

func getProject(ctx context.Context, r store.Reader, id string) (*projectdomain.Project, error) {
	p, err := r.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgProjectNotFound)
	}
	return p, err
}

// peersOf returns known plus every owner of kind holding an edge to target, without duplicates.
func peersOf(ctx context.Context, r store.Reader, target membership.Ref, kind membership.Kind, known []string) ([]membership.Ref, error) {
	back, err := r.ListEdgesTo(ctx, target, kind)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(known)+len(back))
	var out []membership.Ref
	for _, id := range known {
		if !seen[id] {
			seen[id] = true
			out = append(out, membership.Ref{Kind: kind, ID: id})
		}
	}
	for _, e := range back {
		if !seen[e.Owner.ID] {
			seen[e.Owner.ID] = true
			out = append(out, e.Owner)
		}
	}
	return out, nil
}

func addedEvent(p *projectdomain.Project, org *orgdomain.Org, actorName string, to Recipient) Event {
	return Event{
		Kind:        EventAddedToProject,
		Recipient:   to,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		OrgName:     org.Name,
		ActorName:   actorName,
	}
}
