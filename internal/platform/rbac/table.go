// Package rbac is the role authorization gate. Every mutating operation is declared in a table
// mapping it to the context its role is resolved in, the roles allowed to perform it and whether
// only the project owner may. The table is loaded into OPA as data and evaluated by a Rego policy.
package rbac

import (
	membership "collab-control-plane/backend/internal/membership/domain"
)

// Operation names a gated operation.
type Operation string

const (
	OpProjectCreate       Operation = "project.create"
	OpProjectUpdate       Operation = "project.update"
	OpProjectDelete       Operation = "project.delete"
	OpProjectAddMember    Operation = "project.add_member"
	OpProjectAddTeam      Operation = "project.add_team"
	OpProjectRemoveMember Operation = "project.remove_member"
	OpProjectView         Operation = "project.view"
	OpOrgAddMember        Operation = "org.add_member"
	OpOrgView             Operation = "org.view"
	OpTeamCreate          Operation = "team.create"
	OpTeamAddMember       Operation = "team.add_member"
)

// Scope is where an actor's role is looked up for an operation.
type Scope string

const (
	ScopeOrg     Scope = "org"
	ScopeProject Scope = "project"
)

// Rule is one row of the authorization table.
type Rule struct {
	Scope     Scope
	Roles     membership.RoleSet
	OwnerOnly bool
}

// Table maps operations to rules.
type Table map[Operation]Rule

// DefaultTable is the authorization table the server runs with.
func DefaultTable() Table {
	return Table{
		OpProjectCreate:       {Scope: ScopeOrg, Roles: membership.AtLeast(membership.RoleLeader)},
		OpProjectUpdate:       {Scope: ScopeProject, Roles: membership.AtLeast(membership.RoleLeader)},
		OpProjectDelete:       {Scope: ScopeProject, Roles: membership.Only(membership.RoleAdmin), OwnerOnly: true},
		OpProjectAddMember:    {Scope: ScopeProject, Roles: membership.AtLeast(membership.RoleLeader)},
		OpProjectAddTeam:      {Scope: ScopeProject, Roles: membership.AtLeast(membership.RoleLeader)},
		OpProjectRemoveMember: {Scope: ScopeProject, Roles: membership.AtLeast(membership.RoleLeader)},
		OpProjectView:         {Scope: ScopeProject, Roles: membership.AtLeast(membership.RoleMember)},
		OpOrgAddMember:        {Scope: ScopeOrg, Roles: membership.AtLeast(membership.RoleModerator)},
		OpOrgView:             {Scope: ScopeOrg, Roles: membership.AtLeast(membership.RoleMember)},
		OpTeamCreate:          {Scope: ScopeOrg, Roles: membership.AtLeast(membership.RoleModerator)},
		OpTeamAddMember:       {Scope: ScopeOrg, Roles: membership.AtLeast(membership.RoleLeader)},
	}
}

// data renders the table as the OPA data document read by the policy under data.operations.
func (t Table) data() map[string]interface{} {
	ops := make(map[string]interface{}, len(t))
	for op, rule := range t {
		roles := make([]interface{}, 0, len(rule.Roles))
		for _, r := range rule.Roles.Strings() {
			roles = append(roles, r)
		}
		ops[string(op)] = map[string]interface{}{
			"scope":      string(rule.Scope),
			"roles":      roles,
			"owner_only": rule.OwnerOnly,
		}
	}
	return map[string]interface{}{"operations": ops}
}
