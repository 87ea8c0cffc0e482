package domain

import (
	"errors"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
)

// Project belongs to one org. CreatedBy is the immutable owner and is always an admin member.
type Project struct {
	ID          string
	OrgID       string
	CreatedBy   string
	Name        string
	Description string
	Members     membership.Edges
	Teams       []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ref returns the project's edge endpoint.
func (p *Project) Ref() membership.Ref {
	return membership.ProjectRef(p.ID)
}

// RoleOf returns the role of userID in the project and whether the user is a member.
func (p *Project) RoleOf(userID string) (membership.Role, bool) {
	return p.Members.RoleOf(membership.UserRef(userID))
}

// HasTeam reports whether teamID is linked to the project.
func (p *Project) HasTeam(teamID string) bool {
	for _, id := range p.Teams {
		if id == teamID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Members = p.Members.Clone()
	c.Teams = append([]string(nil), p.Teams...)
	return &c
}

// Validate validates the project for persistence.
func (p *Project) Validate() error {
	if p.Name == "" {
		return errors.New("project Name is required")
	}
	if p.OrgID == "" {
		return errors.New("org is required")
	}
	if p.CreatedBy == "" {
		return errors.New("owner is required")
	}
	return nil
}
