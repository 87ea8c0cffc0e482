// Package txn applies cascade plans atomically. Each attempt opens a store transaction, runs the
// planner against it, applies the plan's steps and commits. A conflicting concurrent commit is
// retried with exponential backoff; any other failure aborts the attempt and rolls back every
// step. Callers see either the planner's own apperr error or a CascadeFailed error.
package txn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"collab-control-plane/backend/internal/cascade"
	"collab-control-plane/backend/internal/platform/apperr"
	"collab-control-plane/backend/internal/store"
)

const instrumentationName = "collab-control-plane/backend/internal/txn"

// State is the lifecycle state of one attempt.
type State string

const (
	StatePending   State = "pending"
	StateApplying  State = "applying"
	StateCommitted State = "committed"
	StateAborted   State = "aborted"
)

// PlanFunc computes a plan from state read through the open transaction.
type PlanFunc func(ctx context.Context, r store.Reader) (*cascade.Plan, error)

// Options tunes retry and timeout. Zero values take the defaults below.
type Options struct {
	// Timeout bounds a whole Execute call, retries included.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt on a conflicting commit.
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnTransition, when set, observes every state change.
	OnTransition func(op string, attempt int, from, to State)
}

const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 20 * time.Millisecond
	DefaultMaxInterval     = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = DefaultInitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxInterval
	}
	return o
}

// Coordinator runs cascades against a store.
type Coordinator struct {
	store  store.Store
	log    *zap.Logger
	opts   Options
	tracer trace.Tracer

	attempts metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

// New returns a coordinator over s. MaxRetries of zero disables retries.
func New(s store.Store, log *zap.Logger, opts Options) (*Coordinator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	attempts, err := meter.Int64Counter("cascade.attempts",
		metric.WithDescription("Transaction attempts started by the cascade coordinator."))
	if err != nil {
		return nil, fmt.Errorf("cascade.attempts: %w", err)
	}
	outcomes, err := meter.Int64Counter("cascade.outcomes",
		metric.WithDescription("Cascades by final state."))
	if err != nil {
		return nil, fmt.Errorf("cascade.outcomes: %w", err)
	}
	duration, err := meter.Float64Histogram("cascade.duration",
		metric.WithDescription("Wall time of a cascade including retries."), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("cascade.duration: %w", err)
	}
	return &Coordinator{
		store:    s,
		log:      log,
		opts:     opts.withDefaults(),
		tracer:   otel.Tracer(instrumentationName),
		attempts: attempts,
		outcomes: outcomes,
		duration: duration,
	}, nil
}

// Execute runs plan atomically under op's name and returns the committed plan. Errors are the
// planner's apperr error unchanged, or apperr.CascadeFailed for store failures, exhausted retries
// and timeouts. A commit that has started is never interrupted by ctx.
func (c *Coordinator) Execute(ctx context.Context, op string, plan PlanFunc) (*cascade.Plan, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "cascade "+op, trace.WithAttributes(attribute.String("cascade.operation", op)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval

	attempt := 0
	p, err := backoff.Retry(ctx, func() (*cascade.Plan, error) {
		attempt++
		p, err := c.attempt(ctx, op, attempt, plan)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, store.ErrConflict) && ctx.Err() == nil {
			c.log.Warn("cascade conflict, retrying",
				zap.String("operation", op), zap.Int("attempt", attempt), zap.Error(err))
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.MaxRetries+1),
		backoff.WithMaxElapsedTime(c.opts.Timeout),
	)

	state := StateCommitted
	if err != nil {
		state = StateAborted
		err = c.classify(op, attempt, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(attribute.String("operation", op), attribute.String("state", string(state)))
	c.outcomes.Add(context.WithoutCancel(ctx), 1, attrs)
	c.duration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(), attrs)
	span.SetAttributes(attribute.Int("cascade.attempts", attempt), attribute.String("cascade.state", string(state)))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// classify keeps planner errors and turns everything else into CascadeFailed.
func (c *Coordinator) classify(op string, attempts int, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	fields := []zap.Field{zap.String("operation", op), zap.Int("attempts", attempts), zap.Error(err)}
	var se *cascade.StepError
	if errors.As(err, &se) {
		fields = append(fields, zap.String("step", se.Step))
	}
	c.log.Error("cascade aborted", fields...)
	return apperr.CascadeFailed(op, err)
}

func (c *Coordinator) attempt(ctx context.Context, op string, n int, planFn PlanFunc) (*cascade.Plan, error) {
	c.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
	c.transition(ctx, op, n, "", StatePending)

	tx, err := c.store.Begin(ctx)
	if err != nil {
		c.transition(ctx, op, n, StatePending, StateAborted)
		return nil, fmt.Errorf("begin: %w", err)
	}

	p, err := planFn(ctx, tx)
	if err != nil {
		c.abort(ctx, op, n, StatePending, tx)
		return nil, err
	}
	if p == nil {
		c.abort(ctx, op, n, StatePending, tx)
		return nil, errors.New("planner returned no plan")
	}

	c.transition(ctx, op, n, StatePending, StateApplying)
	if err := p.Apply(ctx, tx); err != nil {
		c.abort(ctx, op, n, StateApplying, tx)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		c.abort(ctx, op, n, StateApplying, tx)
		return nil, err
	}
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		c.abort(ctx, op, n, StateApplying, tx)
		return nil, fmt.Errorf("commit: %w", err)
	}
	c.transition(ctx, op, n, StateApplying, StateCommitted)
	return p, nil
}

func (c *Coordinator) abort(ctx context.Context, op string, n int, from State, tx store.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		c.log.Error("cascade rollback failed", zap.String("operation", op), zap.Int("attempt", n), zap.Error(err))
	}
	c.transition(ctx, op, n, from, StateAborted)
}

func (c *Coordinator) transition(ctx context.Context, op string, n int, from, to State) {
	trace.SpanFromContext(ctx).AddEvent(string(to), trace.WithAttributes(attribute.Int("attempt", n)))
	c.log.Debug("cascade state",
		zap.String("operation", op), zap.Int("attempt", n),
		zap.String("from", string(from)), zap.String("to", string(to)))
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(op, n, from, to)
	}
}
