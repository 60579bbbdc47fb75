/*
scheduler.go - Automated wave dispatch

PURPOSE:
  Periodically takes the oldest staged orders, up to the planner's MaxOrders,
  and plans them as one run against the current inventory (wave picking).
  Orders beyond the cap wait for the next tick, in staging order.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Skips the tick when nothing is staged
  - Remembers the last dispatched run for the status endpoint

CONFIGURATION:
  - Interval: How often to dispatch (config: dispatch.interval)
  - Enabled:  Whether the scheduler is active (config: dispatch.enabled)

USAGE:
  scheduler := NewDispatchScheduler(planner, queue)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: DispatchNow endpoint (manual dispatch)
  - planner/planner.go: Dispatch
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/picking"
	"github.com/warp/pick-engine/planner"
)

// DispatchScheduler plans staged orders on an interval.
type DispatchScheduler struct {
	Planner  *planner.Planner
	Queue    picking.OrderQueue
	Interval time.Duration
	Enabled  bool

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun *picking.RunRecord
	lastErr error
}

// NewDispatchScheduler creates a scheduler with a one-minute interval.
func NewDispatchScheduler(p *planner.Planner, queue picking.OrderQueue) *DispatchScheduler {
	return &DispatchScheduler{
		Planner:  p,
		Queue:    queue,
		Interval: time.Minute,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ds *DispatchScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		logging.Logger().Info("dispatch scheduler disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.Interval)
	ds.wg.Add(1)

	go ds.run(ds.ticker.C)

	logging.Logger().WithField("interval", ds.Interval.String()).Info("dispatch scheduler started")
}

// Stop stops the scheduler and waits for an in-flight dispatch.
func (ds *DispatchScheduler) Stop() {
	ds.mu.Lock()
	if ds.ticker == nil {
		ds.mu.Unlock()
		return
	}
	ds.ticker.Stop()
	ds.ticker = nil
	close(ds.stop)
	ds.mu.Unlock()

	ds.wg.Wait()
	logging.Logger().Info("dispatch scheduler stopped")
}

func (ds *DispatchScheduler) run(ticks <-chan time.Time) {
	defer ds.wg.Done()

	for {
		select {
		case <-ticks:
			ds.DispatchOnce(context.Background())
		case <-ds.stop:
			return
		}
	}
}

// DispatchOnce plans whatever is staged right now. It returns nil when the
// queue was empty.
func (ds *DispatchScheduler) DispatchOnce(ctx context.Context) (*picking.RunRecord, error) {
	run, err := ds.Planner.Dispatch(ctx, ds.Queue)
	if err != nil {
		logging.Errorf(ctx, "dispatch failed: %v", err)
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.lastErr = err
	if run != nil {
		ds.lastRun = run
	}
	return run, err
}

// Last returns the last dispatched run (nil if none) and the last error.
func (ds *DispatchScheduler) Last() (*picking.RunRecord, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.lastRun, ds.lastErr
}
