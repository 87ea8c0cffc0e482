package domain

import (
	"errors"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
)

// Team belongs to exactly one org and may be linked to projects of that org.
type Team struct {
	ID        string
	OrgID     string
	Name      string
	Members   membership.Edges
	Projects  []string
	CreatedAt time.Time
}

// Ref returns the team's edge endpoint.
func (t *Team) Ref() membership.Ref {
	return membership.TeamRef(t.ID)
}

// HasProject reports whether the team has been added to projectID.
func (t *Team) HasProject(projectID string) bool {
	for _, id := range t.Projects {
		if id == projectID {
			return true
		}
	}
	return false
}

// Validate validates the team for persistence.
func (t *Team) Validate() error {
	if t.Name == "" {
		return errors.New("team name is required")
	}
	if t.OrgID == "" {
		return errors.New("org is required")
	}
	return nil
}
