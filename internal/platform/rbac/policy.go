package rbac

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
)

const decisionQuery = "data.collab.authz.decision"

// authzPolicy allows an operation when the actor's role is in the operation's allow-set and,
// for owner-only operations, the actor is the owner. reason tells the two denials apart.
const authzPolicy = `package collab.authz

default decision := {"allow": false, "reason": "role"}

decision := {"allow": true, "reason": ""} if {
	role_allowed
	owner_satisfied
}

decision := {"allow": false, "reason": "owner"} if {
	role_allowed
	not owner_satisfied
}

role_allowed if {
	some role in data.operations[input.operation].roles
	role == input.role
}

owner_satisfied if {
	not data.operations[input.operation].owner_only
}

owner_satisfied if {
	data.operations[input.operation].owner_only
	input.actor_id == input.owner_id
}
`

const (
	reasonRole  = "role"
	reasonOwner = "owner"
)

type decision struct {
	Allow  bool
	Reason string
}

type evaluator struct {
	query rego.PreparedEvalQuery
}

func newEvaluator(ctx context.Context, table Table) (*evaluator, error) {
	q, err := rego.New(
		rego.Query(decisionQuery),
		rego.Module("authz.rego", authzPolicy),
		rego.Store(inmem.NewFromObject(table.data())),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare authz policy: %w", err)
	}
	return &evaluator{query: q}, nil
}

type evalInput struct {
	Operation Operation
	Role      string
	ActorID   string
	OwnerID   string
}

func (e *evaluator) eval(ctx context.Context, in evalInput) (decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"operation": string(in.Operation),
		"role":      in.Role,
		"actor_id":  in.ActorID,
		"owner_id":  in.OwnerID,
	}))
	if err != nil {
		return decision{}, fmt.Errorf("eval authz policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return decision{}, fmt.Errorf("authz policy returned no result")
	}
	m, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return decision{}, fmt.Errorf("authz policy returned %T", rs[0].Expressions[0].Value)
	}
	allow, _ := m["allow"].(bool)
	reason, _ := m["reason"].(string)
	return decision{Allow: allow, Reason: reason}, nil
}
