package maintenance

import (
	"errors"
	"log"
	"sync/atomic"
	"testing"
)

type countingRebuilder struct {
	calls int32
	err   error
}

func (c *countingRebuilder) Rebuild() error {
	atomic.AddInt32(&c.calls, 1)
	return c.err
}

func TestScheduler_RunRebuildUpdatesStats(t *testing.T) {
	r := &countingRebuilder{}
	s := New(r, log.Default())
	s.runRebuild()
	runs, err := s.Stats()
	if runs != 1 || err != nil {
		t.Fatalf("Stats() = %d, %v", runs, err)
	}
	if atomic.LoadInt32(&r.calls) != 1 {
		t.Fatalf("Rebuild called %d times, want 1", r.calls)
	}
}

func TestScheduler_RunRebuildRecordsError(t *testing.T) {
	wantErr := errors.New("boom")
	r := &countingRebuilder{err: wantErr}
	s := New(r, log.Default())
	s.runRebuild()
	_, err := s.Stats()
	if err != wantErr {
		t.Fatalf("Stats() err = %v, want %v", err, wantErr)
	}
}

func TestScheduler_StartRejectsInvalidSpec(t *testing.T) {
	s := New(&countingRebuilder{}, log.Default())
	if err := s.Start("not a cron expression"); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := New(&countingRebuilder{}, log.Default())
	if err := s.Start("@every 1h"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
