package domain

import (
	"errors"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
)

// Org represents an organization/tenant. It owns the canonical list of its teams and projects.
type Org struct {
	ID        string
	Name      string
	CreatedBy string
	Status    OrgStatus
	// Members holds org→user edges; Teams and Projects are ordered ids.
	Members   membership.Edges
	Teams     []string
	Projects  []string
	Timeline  []TimelineEvent
	CreatedAt time.Time
}

type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

// TimelineEvent is one entry of the org's append-only history. It never references live documents.
type TimelineEvent struct {
	Text      string
	ActorID   string
	CreatedAt time.Time
}

// Ref returns the org's edge endpoint.
func (o *Org) Ref() membership.Ref {
	return membership.OrgRef(o.ID)
}

// RoleOf returns the role of userID in the org and whether the user is a member.
func (o *Org) RoleOf(userID string) (membership.Role, bool) {
	return o.Members.RoleOf(membership.UserRef(userID))
}

// HasProject reports whether projectID is in the org's project list.
func (o *Org) HasProject(projectID string) bool {
	for _, id := range o.Projects {
		if id == projectID {
			return true
		}
	}
	return false
}

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	if o.Status == "" {
		o.Status = OrgStatusActive
	}
	return nil
}
