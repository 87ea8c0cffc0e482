// Package cascade computes the edge writes for each membership mutation. Planners read the current
// documents, validate the request and return a Plan: an ordered list of named writes plus the
// notifications to send once the writes commit. Planners never write; the transaction coordinator
// applies the plan inside the same transaction the planner read from.
package cascade

import (
	"context"
	"fmt"

	membership "collab-control-plane/backend/internal/membership/domain"
	orgdomain "collab-control-plane/backend/internal/organization/domain"
	"collab-control-plane/backend/internal/store"
)

// Step is one named write.
type Step struct {
	Name  string
	Apply func(ctx context.Context, w store.Writer) error
}

// EventKind names a post-commit notification.
type EventKind string

const EventAddedToProject EventKind = "project.member_added"

// Recipient is the user a notification is addressed to.
type Recipient struct {
	UserID   string
	Email    string
	UserName string
}

// Event is a notification to deliver after commit.
type Event struct {
	Kind        EventKind
	Recipient   Recipient
	ProjectID   string
	ProjectName string
	OrgName     string
	ActorName   string
}

// Plan is the unit of work for one mutation.
type Plan struct {
	Operation string
	Steps     []Step
	Events    []Event
	// Result is what the operation returns to its caller once committed.
	Result any
}

func newPlan(op string) *Plan { return &Plan{Operation: op} }

func (p *Plan) add(name string, fn func(ctx context.Context, w store.Writer) error) {
	p.Steps = append(p.Steps, Step{Name: name, Apply: fn})
}

func (p *Plan) addEdge(e membership.Edge) {
	p.add("add edge "+e.String(), func(ctx context.Context, w store.Writer) error {
		return w.AddEdge(ctx, e)
	})
}

func (p *Plan) removeEdge(owner, peer membership.Ref) {
	p.add(fmt.Sprintf("remove edge %s->%s", owner, peer), func(ctx context.Context, w store.Writer) error {
		return w.RemoveEdge(ctx, owner, peer)
	})
}

// link adds both directions of a membership, owner side first.
func (p *Plan) link(a, b membership.Ref, role membership.Role) {
	for _, e := range membership.Link(a, b, role) {
		p.addEdge(e)
	}
}

func (p *Plan) timeline(orgID string, ev orgdomain.TimelineEvent) {
	p.add("append timeline "+orgID, func(ctx context.Context, w store.Writer) error {
		return w.AppendTimeline(ctx, orgID, ev)
	})
}

// Apply runs every step against w in order and stops at the first failure, reporting the step name.
func (p *Plan) Apply(ctx context.Context, w store.Writer) error {
	for _, s := range p.Steps {
		if err := s.Apply(ctx, w); err != nil {
			return &StepError{Step: s.Name, Err: err}
		}
	}
	return nil
}

// StepError identifies the step of a plan that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %q: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

func recipient(id, email, userName string) Recipient {
	return Recipient{UserID: id, Email: email, UserName: userName}
}

// ResultOf returns the committed plan's result as T.
func ResultOf[T any](p *Plan) (T, error) {
	var zero T
	if p == nil {
		return zero, fmt.Errorf("cascade: no plan")
	}
	v, ok := p.Result.(T)
	if !ok {
		return zero, fmt.Errorf("cascade: %s result is %T, want %T", p.Operation, p.Result, zero)
	}
	return v, nil
}
