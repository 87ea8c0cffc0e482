package rbac

import (
	"context"
	"errors"
	"fmt"

	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/server/interceptors"
)

const (
	msgUnauthenticated  = "Authentication required"
	msgNotOrgMember     = "You are not a member of this organization"
	msgNotProjectMember = "You are not a member of this project"
	msgOrgNotFound      = "Organization not found"
	msgProjectNotFound  = "Project not found"
	msgRoleDenied       = "You do not have permission to perform this action"
	msgOwnerOnly        = "Only project owner can delete the project."
)

// Grant describes an authorized call: who made it and what the gate learned about the target.
type Grant struct {
	ActorID string
	Role    membership.Role
	// OrgID is the target org, or the project's org for project-scoped operations.
	OrgID   string
	OwnerID string
}

// Gate authorizes operations against pre-mutation state.
type Gate struct {
	resolver RoleResolver
	table    Table
	eval     *evaluator
}

// NewGate compiles the policy over table. A nil table means DefaultTable.
func NewGate(ctx context.Context, resolver RoleResolver, table Table) (*Gate, error) {
	if table == nil {
		table = DefaultTable()
	}
	ev, err := newEvaluator(ctx, table)
	if err != nil {
		return nil, err
	}
	return &Gate{resolver: resolver, table: table, eval: ev}, nil
}

// Authorize checks that the actor in ctx may perform op on target, an org id or a project id
// depending on the operation's scope. Errors are apperr values: Unauthorized when there is no
// actor or the actor has no role in the target, NotFound when the target does not exist, and
// Forbidden when the role or ownership check fails.
func (g *Gate) Authorize(ctx context.Context, op Operation, target string) (Grant, error) {
	rule, ok := g.table[op]
	if !ok {
		return Grant{}, apperr.Internal("authorize", fmt.Errorf("rbac: unknown operation %q", op))
	}
	actorID, ok := interceptors.GetUserID(ctx)
	if !ok {
		return Grant{}, apperr.Unauthorized(msgUnauthenticated)
	}

	grant := Grant{ActorID: actorID}
	var err error
	switch rule.Scope {
	case ScopeOrg:
		grant.OrgID = target
		grant.Role, err = g.resolver.OrgRole(ctx, target, actorID)
		if errors.Is(err, ErrScopeNotFound) {
			return Grant{}, apperr.NotFound(msgOrgNotFound)
		}
	case ScopeProject:
		grant.Role, grant.OwnerID, grant.OrgID, err = g.resolver.ProjectRole(ctx, target, actorID)
		if errors.Is(err, ErrScopeNotFound) {
			return Grant{}, apperr.NotFound(msgProjectNotFound)
		}
	default:
		return Grant{}, apperr.Internal("authorize", fmt.Errorf("rbac: operation %q has unknown scope %q", op, rule.Scope))
	}
	if err != nil {
		return Grant{}, apperr.Internal("authorize", err)
	}
	if grant.Role == membership.RoleNone {
		if rule.Scope == ScopeOrg {
			return Grant{}, apperr.Unauthorized(msgNotOrgMember)
		}
		return Grant{}, apperr.Unauthorized(msgNotProjectMember)
	}

	d, err := g.eval.eval(ctx, evalInput{
		Operation: op,
		Role:      string(grant.Role),
		ActorID:   actorID,
		OwnerID:   grant.OwnerID,
	})
	if err != nil {
		return Grant{}, apperr.Internal("authorize", err)
	}
	if !d.Allow {
		if d.Reason == reasonOwner {
			return Grant{}, apperr.Forbidden(msgOwnerOnly)
		}
		return Grant{}, apperr.Forbidden(msgRoleDenied)
	}
	return grant, nil
}

// HealthCheck evaluates the compiled policy once with a request it must allow.
func (g *Gate) HealthCheck(ctx context.Context) error {
	for op, rule := range g.table {
		if len(rule.Roles) == 0 || rule.OwnerOnly {
			continue
		}
		d, err := g.eval.eval(ctx, evalInput{Operation: op, Role: string(rule.Roles[0])})
		if err != nil {
			return err
		}
		if !d.Allow {
			return fmt.Errorf("rbac: policy denied %s for %s", op, rule.Roles[0])
		}
		return nil
	}
	return errors.New("rbac: table has no evaluable operation")
}
