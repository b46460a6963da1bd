package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingTarget struct {
	ticks int64
}

func (c *countingTarget) Sweep(_ time.Time) {
	atomic.AddInt64(&c.ticks, 1)
}

func TestNewSweeper(t *testing.T) {
	target := &countingTarget{}
	s := NewSweeper(target, time.Second, zerolog.Nop())

	if s == nil {
		t.Fatal("expected sweeper to be created")
	}
	if s.interval != time.Second {
		t.Errorf("expected interval 1s, got %v", s.interval)
	}
}

func TestSweeperInvokesTarget(t *testing.T) {
	target := &countingTarget{}
	s := NewSweeper(target, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan bool)
	go func() {
		s.Start(ctx)
		done <- true
	}()
	<-done

	if atomic.LoadInt64(&target.ticks) == 0 {
		t.Error("expected at least one sweep invocation")
	}
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	target := &countingTarget{}
	s := NewSweeper(target, 50*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		s.Start(ctx)
		done <- true
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("sweeper did not stop within timeout after context cancel")
	}
}
