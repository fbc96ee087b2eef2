// Package maintenance schedules the BTree's explicit, never-implicit
// Rebuild operation on a cron expression, the same way the wider pack
// drives periodic jobs off github.com/robfig/cron/v3.
package maintenance

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Rebuilder is satisfied by *pager.BTree. It is kept as a narrow interface
// here so the scheduler does not need to import the pager package just to
// call one method.
type Rebuilder interface {
	Rebuild() error
}

// Scheduler periodically invokes a Rebuilder's Rebuild on a cron schedule.
// It never runs anything the caller didn't explicitly schedule — an empty
// schedule and Scheduler is simply never started.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	target Rebuilder
	logger *log.Logger

	lastErr error
	runs    int
}

// New constructs a Scheduler for target, ticking on the standard five-field
// spec expression. Seconds are not supported, matching the cron the pack's
// own job runner uses.
func New(target Rebuilder, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		target: target,
		logger: logger,
	}
}

// Start registers the rebuild job on spec and begins the cron loop. It
// returns an error if spec cannot be parsed.
func (s *Scheduler) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runRebuild)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runRebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Printf("maintenance: starting scheduled rebuild (run #%d)", s.runs+1)
	err := s.target.Rebuild()
	s.runs++
	s.lastErr = err
	if err != nil {
		s.logger.Printf("maintenance: rebuild failed: %v", err)
		return
	}
	s.logger.Printf("maintenance: rebuild complete")
}

// Stats reports how many rebuilds have run and the most recent error, if
// any.
func (s *Scheduler) Stats() (runs int, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastErr
}
