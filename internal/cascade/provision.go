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
	"collab-control-plane/backend/internal/store"
	teamdomain "collab-control-plane/backend/internal/team/domain"
	userdomain "collab-control-plane/backend/internal/user/domain"
)

const (
	msgUserNotFound     = "User not found"
	msgTeamNotFound     = "Team not found"
	msgOrgNotFound      = "Organization not found"
	msgEmailTaken       = "User with this email already exists"
	msgMemberInOrg      = "Member is already part of this organization"
	msgMemberInTeam     = "Member is already part of this team"
	msgOrgNameRequired  = "organization Name is required"
	msgTeamNameRequired = "team Name is required"
)

// RegisterUserInput describes a new account. PasswordHash is computed by the caller.
type RegisterUserInput struct {
	UserID       string
	Email        string
	UserName     string
	PasswordHash string
	Now          time.Time
}

// RegisterUser plans a user row. The email must not be registered yet.
func RegisterUser(ctx context.Context, r store.Reader, in RegisterUserInput) (*Plan, error) {
	u := &userdomain.User{
		ID:           in.UserID,
		Email:        strings.TrimSpace(in.Email),
		UserName:     strings.TrimSpace(in.UserName),
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
		UpdatedAt:    in.Now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	_, err := r.GetUserByEmail(ctx, u.Email)
	if err == nil {
		return nil, apperr.Validation(msgEmailTaken)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	plan := newPlan("register user")
	row := *u
	plan.add("create user "+u.ID, func(ctx context.Context, w store.Writer) error {
		return w.CreateUser(ctx, &row)
	})
	plan.Result = u
	return plan, nil
}

// CreateOrganizationInput describes a new org. OrgID is allocated by the caller.
type CreateOrganizationInput struct {
	OrgID   string
	Name    string
	ActorID string
	Now     time.Time
}

// CreateOrganization plans an org whose creator is its first admin.
func CreateOrganization(ctx context.Context, r store.Reader, in CreateOrganizationInput) (*Plan, error) {
	o := &orgdomain.Org{ID: in.OrgID, Name: strings.TrimSpace(in.Name), CreatedBy: in.ActorID, CreatedAt: in.Now}
	if o.Name == "" {
		return nil, apperr.Validation(msgOrgNameRequired)
	}
	if err := o.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	plan := newPlan("create organization")
	row := *o
	plan.add("create organization "+o.ID, func(ctx context.Context, w store.Writer) error {
		return w.CreateOrganization(ctx, &row)
	})
	plan.link(o.Ref(), actor.Ref(), membership.RoleAdmin)
	plan.timeline(o.ID, orgdomain.TimelineEvent{
		Text:      fmt.Sprintf("<b>%s</b> created the organization - <i>%s</i>.", actor.UserName, o.Name),
		ActorID:   actor.ID,
		CreatedAt: in.Now,
	})

	o.Members = membership.Edges{{Owner: o.Ref(), Peer: actor.Ref(), Role: membership.RoleAdmin}}
	plan.Result = o
	return plan, nil
}

// AddOrgMemberInput adds an existing user to an org. AsRoleOf defaults to member.
type AddOrgMemberInput struct {
	OrgID    string
	MemberID string
	AsRoleOf string
}

// AddOrgMember plans a single org membership, org side first.
func AddOrgMember(ctx context.Context, r store.Reader, in AddOrgMemberInput) (*Plan, error) {
	if strings.TrimSpace(in.MemberID) == "" {
		return nil, apperr.Validation(msgInvalidMemberID)
	}
	role, err := membership.ParseRole(in.AsRoleOf, membership.RoleMember)
	if err != nil {
		return nil, apperr.Validation(msgInvalidRole)
	}
	o, err := r.GetOrganization(ctx, in.OrgID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgOrgNotFound)
	}
	if err != nil {
		return nil, err
	}
	u, err := r.GetUser(ctx, in.MemberID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	if _, ok := o.RoleOf(u.ID); ok {
		return nil, apperr.DuplicateMembership(msgMemberInOrg)
	}

	plan := newPlan("add organization member")
	plan.link(o.Ref(), u.Ref(), role)
	o.Members = append(o.Members, membership.Edge{Owner: o.Ref(), Peer: u.Ref(), Role: role})
	plan.Result = o
	return plan, nil
}

// CreateTeamInput describes a new team inside an org. TeamID is allocated by the caller.
type CreateTeamInput struct {
	TeamID  string
	OrgID   string
	Name    string
	ActorID string
	Now     time.Time
}

// CreateTeam plans a team led by its creator and listed on its org.
func CreateTeam(ctx context.Context, r store.Reader, in CreateTeamInput) (*Plan, error) {
	t := &teamdomain.Team{ID: in.TeamID, OrgID: in.OrgID, Name: strings.TrimSpace(in.Name), CreatedAt: in.Now}
	if t.Name == "" {
		return nil, apperr.Validation(msgTeamNameRequired)
	}
	if err := t.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if _, err := r.GetOrganization(ctx, in.OrgID); err != nil {
		return nil, err
	}
	actor, err := r.GetUser(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}

	plan := newPlan("create team")
	row := *t
	plan.add("create team "+t.ID, func(ctx context.Context, w store.Writer) error {
		return w.CreateTeam(ctx, &row)
	})
	plan.addEdge(membership.Edge{Owner: membership.OrgRef(t.OrgID), Peer: t.Ref()})
	plan.link(t.Ref(), actor.Ref(), membership.RoleLeader)
	plan.timeline(t.OrgID, orgdomain.TimelineEvent{
		Text:      fmt.Sprintf("<b>%s</b> created a team - <i>%s</i>.", actor.UserName, t.Name),
		ActorID:   actor.ID,
		CreatedAt: in.Now,
	})

	t.Members = membership.Edges{{Owner: t.Ref(), Peer: actor.Ref(), Role: membership.RoleLeader}}
	plan.Result = t
	return plan, nil
}

// AddTeamMemberInput adds an org member to a team. AsRoleOf defaults to member.
type AddTeamMemberInput struct {
	TeamID   string
	MemberID string
	AsRoleOf string
}

// AddTeamMember plans a single team membership. Joining a team does not change the projects the
// team is already linked to.
func AddTeamMember(ctx context.Context, r store.Reader, in AddTeamMemberInput) (*Plan, error) {
	if strings.TrimSpace(in.MemberID) == "" {
		return nil, apperr.Validation(msgInvalidMemberID)
	}
	role, err := membership.ParseRole(in.AsRoleOf, membership.RoleMember)
	if err != nil {
		return nil, apperr.Validation(msgInvalidRole)
	}
	t, err := r.GetTeam(ctx, in.TeamID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(msgTeamNotFound)
	}
	if err != nil {
		return nil, err
	}
	o, err := r.GetOrganization(ctx, t.OrgID)
	if err != nil {
		return nil, err
	}
	if _, ok := o.RoleOf(in.MemberID); !ok {
		return nil, apperr.NotFoundInOrg(msgMemberNotInOrg)
	}
	if t.Members.Has(membership.UserRef(in.MemberID)) {
		return nil, apperr.DuplicateMembership(msgMemberInTeam)
	}

	plan := newPlan("add team member")
	plan.link(t.Ref(), membership.UserRef(in.MemberID), role)
	t.Members = append(t.Members, membership.Edge{Owner: t.Ref(), Peer: membership.UserRef(in.MemberID), Role: role})
	plan.Result = t
	return plan, nil
}
