package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"
	"time"
)

// txCounter is a database/sql connector that records how its transactions end.
type txCounter struct {
	mu        sync.Mutex
	isolation driver.IsolationLevel
	commits   int
	rollbacks int
}

func (c *txCounter) Connect(context.Context) (driver.Conn, error) { return &countingConn{c: c}, nil }

func (c *txCounter) Open(string) (driver.Conn, error) { return &countingConn{c: c}, nil }

func (c *txCounter) Driver() driver.Driver { return c }

func (c *txCounter) counts() (commits, rollbacks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits, c.rollbacks
}

type countingConn struct{ c *txCounter }

func (cn *countingConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("statements not supported")
}

func (cn *countingConn) Close() error { return nil }

func (cn *countingConn) Begin() (driver.Tx, error) { return &countingTx{c: cn.c}, nil }

func (cn *countingConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	cn.c.mu.Lock()
	cn.c.isolation = opts.Isolation
	cn.c.mu.Unlock()
	return &countingTx{c: cn.c}, nil
}

type countingTx struct{ c *txCounter }

func (t *countingTx) Commit() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.commits++
	return nil
}

func (t *countingTx) Rollback() error {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.rollbacks++
	return nil
}

func TestBegin_TransactionOutlivesBeginContext(t *testing.T) {
	counter := &txCounter{}
	s := New(sql.OpenDB(counter))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cancel()
	// database/sql rolls back asynchronously when a watched context ends.
	time.Sleep(50 * time.Millisecond)

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit after cancelled Begin context: %v", err)
	}
	commits, rollbacks := counter.counts()
	if commits != 1 || rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d, want 1 and 0", commits, rollbacks)
	}
	if counter.isolation != driver.IsolationLevel(sql.LevelSerializable) {
		t.Errorf("isolation = %d, want serializable", counter.isolation)
	}
}

func TestBegin_CancelledContext(t *testing.T) {
	counter := &txCounter{}
	s := New(sql.OpenDB(counter))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Begin(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Begin err = %v, want context.Canceled", err)
	}
	if commits, rollbacks := counter.counts(); commits != 0 || rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d, want none", commits, rollbacks)
	}
}

func TestRollback_AfterCommitIsNoop(t *testing.T) {
	counter := &txCounter{}
	s := New(sql.OpenDB(counter))
	defer s.Close()

	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Rollback(context.Background()); err != nil {
		t.Errorf("Rollback after Commit = %v, want nil", err)
	}
	if _, rollbacks := counter.counts(); rollbacks != 0 {
		t.Errorf("rollbacks = %d, want 0", rollbacks)
	}
}
