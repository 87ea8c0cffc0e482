package txn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"collab-control-plane/backend/internal/cascade"
	membership "collab-control-plane/backend/internal/membership/domain"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/store"
	"collab-control-plane/backend/internal/store/memory"
	"collab-control-plane/backend/internal/store/storetest"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// faultyStore wraps a memory store with injectable failures.
type faultyStore struct {
	*memory.Store
	// failAddEdgeAt fails the nth AddEdge of a transaction (1-based); zero disables.
	failAddEdgeAt int
	// commitConflicts is how many commits fail with ErrConflict before one succeeds.
	commitConflicts atomic.Int32
	beginErr        error
	commits         atomic.Int32
}

func (s *faultyStore) Begin(ctx context.Context) (store.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, s: s}, nil
}

type faultyTx struct {
	store.Tx
	s     *faultyStore
	edges int
}

func (t *faultyTx) AddEdge(ctx context.Context, e membership.Edge) error {
	t.edges++
	if t.s.failAddEdgeAt > 0 && t.edges == t.s.failAddEdgeAt {
		return errors.New("disk full")
	}
	return t.Tx.AddEdge(ctx, e)
}

func (t *faultyTx) Commit(ctx context.Context) error {
	t.s.commits.Add(1)
	if t.s.commitConflicts.Add(-1) >= 0 {
		_ = t.Tx.Rollback(ctx)
		return store.ErrConflict
	}
	return t.Tx.Commit(ctx)
}

func seeded(t *testing.T) *faultyStore {
	f := storetest.New(t).
		User("ann").User("bob").
		Org("o1", "Acme").
		OrgMember("o1", "ann", membership.RoleAdmin).
		OrgMember("o1", "bob", membership.RoleMember).
		Project("p1", "o1", "ann", "Alpha")
	return &faultyStore{Store: f.Store}
}

func newCoordinator(t *testing.T, s store.Store, opts Options) *Coordinator {
	t.Helper()
	c, err := New(s, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func addBob(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
	return cascade.AddMember(ctx, r, cascade.AddMemberInput{ProjectID: "p1", MemberID: "bob", ActorID: "ann"})
}

func TestExecute_CommitsAndReportsStates(t *testing.T) {
	s := seeded(t)
	var states []State
	c := newCoordinator(t, s, Options{OnTransition: func(op string, attempt int, from, to State) {
		states = append(states, to)
	}})

	p, err := c.Execute(context.Background(), "add member", addBob)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(p.Events) != 1 {
		t.Errorf("events = %d, want 1", len(p.Events))
	}
	want := []State{StatePending, StateApplying, StateCommitted}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %q, want %q", i, states[i], want[i])
		}
	}
	storetest.AssertProjectConsistent(t, s, "p1")
}

func TestExecute_PlannerErrorPropagatesVerbatim(t *testing.T) {
	s := seeded(t)
	before := s.Fingerprint()
	var last State
	c := newCoordinator(t, s, Options{OnTransition: func(_ string, _ int, _, to State) { last = to }})

	_, err := c.Execute(context.Background(), "add member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		return cascade.AddMember(ctx, r, cascade.AddMemberInput{ProjectID: "p1", MemberID: "ann", ActorID: "ann"})
	})
	if apperr.CodeOf(err) != apperr.CodeDuplicateMembership {
		t.Fatalf("err = %v, want duplicate membership", err)
	}
	if err.Error() != "Member is already part of this project" {
		t.Errorf("message = %q", err.Error())
	}
	if last != StateAborted {
		t.Errorf("final state = %q, want aborted", last)
	}
	if s.Fingerprint() != before {
		t.Error("state changed after a rejected plan")
	}
}

func TestExecute_StepFailureRollsBackEverything(t *testing.T) {
	s := seeded(t)
	// The second edge of the pair fails after the first was written.
	s.failAddEdgeAt = 2
	before := s.Fingerprint()
	c := newCoordinator(t, s, Options{})

	_, err := c.Execute(context.Background(), "add member", addBob)
	if apperr.CodeOf(err) != apperr.CodeCascadeFailed {
		t.Fatalf("err = %v, want cascade failed", err)
	}
	if err.Error() != "Failed to add member due to server error, please try again later" {
		t.Errorf("message = %q", err.Error())
	}
	var se *cascade.StepError
	if !errors.As(err, &se) {
		t.Error("cause should carry the failing step")
	}
	if s.Fingerprint() != before {
		t.Error("a failed cascade left partial writes")
	}
	storetest.AssertProjectConsistent(t, s, "p1")
}

func TestExecute_RetriesConflicts(t *testing.T) {
	s := seeded(t)
	s.commitConflicts.Store(2)
	attempts := 0
	c := newCoordinator(t, s, Options{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond,
		OnTransition: func(_ string, n int, _, to State) {
			if to == StatePending {
				attempts = n
			}
		}})

	if _, err := c.Execute(context.Background(), "add member", addBob); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	p, _ := s.GetProject(context.Background(), "p1")
	if _, ok := p.RoleOf("bob"); !ok {
		t.Error("bob should be a member after the retried commit")
	}
}

func TestExecute_ConflictRetriesExhausted(t *testing.T) {
	s := seeded(t)
	s.commitConflicts.Store(100)
	before := s.Fingerprint()
	c := newCoordinator(t, s, Options{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})

	_, err := c.Execute(context.Background(), "add member", addBob)
	if apperr.CodeOf(err) != apperr.CodeCascadeFailed {
		t.Fatalf("err = %v, want cascade failed", err)
	}
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("cause = %v, want ErrConflict", err)
	}
	if got := s.commits.Load(); got != 3 {
		t.Errorf("commits = %d, want 3", got)
	}
	if s.Fingerprint() != before {
		t.Error("state changed after exhausted retries")
	}
}

func TestExecute_Timeout(t *testing.T) {
	s := seeded(t)
	c := newCoordinator(t, s, Options{Timeout: 20 * time.Millisecond})
	_, err := c.Execute(context.Background(), "add member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if apperr.CodeOf(err) != apperr.CodeCascadeFailed {
		t.Fatalf("err = %v, want cascade failed", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause = %v, want deadline exceeded", err)
	}
}

func TestExecute_BeginFailure(t *testing.T) {
	s := seeded(t)
	s.beginErr = errors.New("connection refused")
	c := newCoordinator(t, s, Options{})
	_, err := c.Execute(context.Background(), "add member", addBob)
	if apperr.CodeOf(err) != apperr.CodeCascadeFailed {
		t.Fatalf("err = %v, want cascade failed", err)
	}
	if apperr.Message(err) == "connection refused" {
		t.Error("internal cause leaked into the message")
	}
}

func TestExecute_CancelAfterPlanningNeverHalfApplies(t *testing.T) {
	s := seeded(t)
	c := newCoordinator(t, s, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Execute(ctx, "add member", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
		p, err := addBob(ctx, r)
		if err != nil {
			return nil, err
		}
		// Cancellation after planning aborts before commit; nothing is half-applied.
		cancel()
		return p, nil
	})
	if err == nil {
		p, _ := s.GetProject(context.Background(), "p1")
		if _, ok := p.RoleOf("bob"); !ok {
			t.Fatal("Execute succeeded but bob is not a member")
		}
	}
	storetest.AssertProjectConsistent(t, s, "p1")
}

// A delete racing an add-member either sees the add fully applied and purges it, or the add
// fails; no user is left pointing at the deleted project.
func TestExecute_DeleteRacingAddMember(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := seeded(t)
		c := newCoordinator(t, s, Options{MaxRetries: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
		ctx := context.Background()

		var wg sync.WaitGroup
		var delErr, addErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, delErr = c.Execute(ctx, "delete project", func(ctx context.Context, r store.Reader) (*cascade.Plan, error) {
				return cascade.DeleteProject(ctx, r, cascade.DeleteProjectInput{ProjectID: "p1", ActorID: "ann", Now: now})
			})
		}()
		go func() {
			defer wg.Done()
			_, addErr = c.Execute(ctx, "add member", addBob)
		}()
		wg.Wait()

		if delErr != nil {
			t.Fatalf("delete: %v", delErr)
		}
		if addErr != nil && apperr.CodeOf(addErr) != apperr.CodeNotFound {
			t.Fatalf("add: err = %v, want success or not found", addErr)
		}
		for _, id := range []string{"ann", "bob"} {
			u, _ := s.GetUser(ctx, id)
			if u.InProject.Has(membership.ProjectRef("p1")) {
				t.Fatalf("run %d: %s still lists the deleted project", i, id)
			}
		}
	}
}
