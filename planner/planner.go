/*
Package planner runs batches of orders against a stored inventory.

PURPOSE:
  The picking package is pure: it takes an inventory and returns a new one.
  A long-lived service needs one authoritative inventory that successive
  batches draw down. Planner owns that loop:

    1. load the current inventory from the Store
    2. run the processor over the batch
    3. commit the run record and the final inventory in one Store call

SEQUENCING:
  Batches are serialized with a mutex. Two concurrent Plan calls behave
  exactly as if the second batch had been appended to the first: its orders
  see everything the first batch committed.

QUEUE:
  Dispatch takes the oldest staged orders from a picking.OrderQueue, at
  most MaxOrders, and plans them as one run. The scheduler calls it on an
  interval (wave picking).

USAGE:
  p := planner.New(store.NewMemory(), picking.NewProcessor())
  p.ReplaceInventory(ctx, inv)
  run, err := p.Plan(ctx, orders)
*/
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/metrics"
	"github.com/warp/pick-engine/picking"
)

// ErrTooManyOrders is returned when a batch exceeds the configured limit.
var ErrTooManyOrders = errors.New("too many orders in one run")

// Planner serializes planning runs over a Store.
type Planner struct {
	store     picking.Store
	processor *picking.Processor

	// MaxOrders caps a single batch. 0 means unlimited.
	MaxOrders int

	mu  sync.Mutex
	now func() time.Time
}

// New creates a Planner. A nil processor gets picking.NewProcessor().
func New(store picking.Store, processor *picking.Processor) *Planner {
	if processor == nil {
		processor = picking.NewProcessor()
	}
	return &Planner{
		store:     store,
		processor: processor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Inventory returns the current inventory.
func (p *Planner) Inventory(ctx context.Context) (picking.Inventory, error) {
	return p.store.LoadInventory(ctx)
}

// ReplaceInventory validates inv and makes it the current inventory.
func (p *Planner) ReplaceInventory(ctx context.Context, inv picking.Inventory) error {
	for i, r := range inv {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.ReplaceInventory(ctx, inv); err != nil {
		return err
	}
	metrics.InventoryRecords.Set(float64(len(inv)))
	logging.Infof(ctx, "inventory replaced: %d records", len(inv))
	return nil
}

// Plan runs orders against the current inventory and commits the result.
// Unsatisfiable or flagged orders do not make Plan fail; they are reported
// in the returned run. An error means nothing was committed.
func (p *Planner) Plan(ctx context.Context, orders []picking.Order) (*picking.RunRecord, error) {
	if p.MaxOrders > 0 && len(orders) > p.MaxOrders {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyOrders, len(orders), p.MaxOrders)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	run := picking.RunRecord{
		ID:        picking.RunID(uuid.NewString()),
		StartedAt: p.now(),
	}
	ctx = logging.WithRunID(ctx, string(run.ID))

	inv, err := p.store.LoadInventory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	result, err := p.processor.Run(ctx, inv, orders)
	if err != nil {
		return nil, fmt.Errorf("run %s aborted after %d orders: %w", run.ID, len(result.Entries), err)
	}

	run.CompletedAt = p.now()
	run.Entries = result.Entries
	run.Summary = result.Summary
	run.Final = result.Final

	if err := p.store.CommitRun(ctx, run, result.Final); err != nil {
		return nil, fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	metrics.RunsTotal.Inc()
	metrics.InventoryRecords.Set(float64(len(result.Final)))

	if result.Summary.Flagged > 0 {
		logging.Warnf(ctx, "run finished with %d flagged orders", result.Summary.Flagged)
	}
	logging.Infof(ctx, "run committed: %d orders, %d committed, %d rejected, total distance %d",
		result.Summary.Orders, result.Summary.Committed, result.Summary.Rejected, result.Summary.TotalDistance)

	return &run, nil
}

// Dispatch plans the oldest staged orders in queue as one run, at most
// MaxOrders of them; later orders wait for the next wave. It returns a nil
// run when nothing is staged. If planning fails the taken lines go back to
// the head of the queue.
func (p *Planner) Dispatch(ctx context.Context, queue picking.OrderQueue) (*picking.RunRecord, error) {
	orders, err := queue.TakeOrders(ctx, p.MaxOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to take staged orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	run, err := p.Plan(ctx, orders)
	if err != nil {
		if requeueErr := queue.RequeueOrderLines(context.WithoutCancel(ctx), flatten(orders)); requeueErr != nil {
			logging.Errorf(ctx, "lost %d staged orders: %v", len(orders), requeueErr)
		}
		return nil, err
	}
	return run, nil
}

func flatten(orders []picking.Order) []picking.OrderLine {
	var lines []picking.OrderLine
	for _, o := range orders {
		lines = append(lines, o.Lines...)
	}
	return lines
}

// Simulate runs orders against inv without touching the store.
func (p *Planner) Simulate(ctx context.Context, inv picking.Inventory, orders []picking.Order) (*picking.RunResult, error) {
	if p.MaxOrders > 0 && len(orders) > p.MaxOrders {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyOrders, len(orders), p.MaxOrders)
	}
	return p.processor.Run(ctx, inv, orders)
}

// Run returns a stored run.
func (p *Planner) Run(ctx context.Context, id picking.RunID) (*picking.RunRecord, error) {
	return p.store.GetRun(ctx, id)
}

// Runs returns up to limit stored runs, newest first.
func (p *Planner) Runs(ctx context.Context, limit int) ([]picking.RunRecord, error) {
	return p.store.ListRuns(ctx, limit)
}
