package domain

import (
	"errors"
	"time"

	membership "collab-control-plane/backend/internal/membership/domain"
)

// User is the core user entity together with its membership edges.
type User struct {
	ID           string
	Email        string
	UserName     string
	PasswordHash string
	Status       UserStatus
	// InOrg, InTeam and InProject are edges owned by the user; peers are weak references.
	InOrg     membership.Edges
	InTeam    membership.Edges
	InProject membership.Edges
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Ref returns the user's edge endpoint.
func (u *User) Ref() membership.Ref {
	return membership.UserRef(u.ID)
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.UserName == "" {
		return errors.New("userName is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
