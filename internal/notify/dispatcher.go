package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"collab-control-plane/backend/internal/cascade"
)

const (
	// DefaultTimeout bounds one Dispatch call, all of its sends included.
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 4
)

// Dispatcher hands committed events to a Sender without blocking the caller.
type Dispatcher struct {
	sender      Sender
	log         *zap.Logger
	timeout     time.Duration
	concurrency int
	wg          sync.WaitGroup
}

// NewDispatcher returns a dispatcher over sender. A nil sender drops every event.
func NewDispatcher(sender Sender, log *zap.Logger, timeout time.Duration, concurrency int) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{sender: sender, log: log, timeout: timeout, concurrency: concurrency}
}

// Dispatch sends events in the background and returns immediately. The sends outlive ctx's
// cancellation but keep its values; errors and panics are logged, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, events []cascade.Event) {
	if d == nil || d.sender == nil || len(events) == 0 {
		return
	}
	events = append([]cascade.Event(nil), events...)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.run(sendCtx, events)
	}()
}

func (d *Dispatcher) run(ctx context.Context, events []cascade.Event) {
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, ev := range events {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				if err != nil {
					d.log.Warn("notification dropped",
						zap.String("kind", string(ev.Kind)),
						zap.String("project_id", ev.ProjectID),
						zap.String("user_id", ev.Recipient.UserID),
						zap.Error(err))
				}
			}()
			msg, err := Compose(ev)
			if err != nil {
				return err
			}
			return d.sender.Send(ctx, msg)
		})
	}
	// Every failure was logged by its own goroutine.
	_ = g.Wait()
}

// Drain waits until every dispatched batch has finished or ctx ends.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
