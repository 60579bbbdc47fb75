/*
processor.go - The sequential order loop

STATE MACHINE (per order):
  Pending -> Indexed -> Allocated -> Committed   emit {order, distance}
                                  -> Rejected    emit {order, unsatisfiable}
                                  -> Flagged     commit refused by the mutator

  Indexed rebuilds the SKU index from the CURRENT inventory, so order N sees
  exactly what order N-1 left behind. Every order reaches a terminal state
  and the loop always moves on to the next one.

CONCURRENCY:
  None. Order N depends on the committed result of order N-1, so orders are
  never processed in parallel. The index is private to one Step call.

CANCELLATION:
  The context is only checked between orders. A cancelled run returns the
  entries produced so far, the inventory as of the last finished order, and
  ctx.Err().
*/
package picking

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/warp/pick-engine/logging"
)

// Observer is notified when an order reaches a terminal state.
type Observer interface {
	OrderFinished(entry ReportEntry)
}

type nopObserver struct{}

func (nopObserver) OrderFinished(ReportEntry) {}

// RunResult is everything a run produces.
type RunResult struct {
	Entries []ReportEntry
	Final   Inventory
	Summary Summary
}

// Processor drives orders through allocation and commit.
type Processor struct {
	Allocator Allocator
	Log       logrus.FieldLogger
	Observer  Observer
}

// Option configures a Processor.
type Option func(*Processor)

// WithAllocator replaces the greedy allocator.
func WithAllocator(a Allocator) Option {
	return func(p *Processor) { p.Allocator = a }
}

// WithLogger sets the logger used for per-order events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Processor) { p.Log = l }
}

// WithObserver registers an observer for finished orders.
func WithObserver(o Observer) Option {
	return func(p *Processor) { p.Observer = o }
}

// NewProcessor returns a Processor with a greedy allocator.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		Allocator: GreedyAllocator{},
		Log:       logrus.StandardLogger(),
		Observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes orders in sequence against a private copy of inv.
func (p *Processor) Run(ctx context.Context, inv Inventory, orders []Order) (*RunResult, error) {
	current := inv.Clone()
	entries := make([]ReportEntry, 0, len(orders))

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return p.result(entries, current), err
		}

		var entry ReportEntry
		entry, current = p.Step(ctx, order, current)
		entries = append(entries, entry)
	}

	return p.result(entries, current), nil
}

// Step takes one order from Pending to a terminal state and returns the
// inventory that the next order must be planned against. ctx only carries
// log correlation; Step never blocks.
func (p *Processor) Step(ctx context.Context, order Order, inv Inventory) (ReportEntry, Inventory) {
	entry := ReportEntry{OrderID: order.ID, State: StatePending}
	log := p.Log.WithField("order_id", order.ID)
	if id := logging.RunID(ctx); id != "" {
		log = log.WithField("run_id", id)
	}

	idx := BuildIndex(inv)
	entry.State = StateIndexed

	alloc := p.Allocator.Allocate(order, idx)
	entry.State = StateAllocated

	if !alloc.Satisfiable {
		entry.State = StateRejected
		entry.Unsatisfiable = true
		entry.Err = alloc.Reason
		log.WithError(alloc.Reason).Info("order rejected")
		p.Observer.OrderFinished(entry)
		return entry, inv
	}

	next, err := Apply(inv, alloc.Assignments)
	if err != nil {
		entry.State = StateFlagged
		entry.Err = err
		log.WithError(err).Error("commit refused, inventory left unchanged")
		p.Observer.OrderFinished(entry)
		return entry, inv
	}

	entry.State = StateCommitted
	entry.Distance = alloc.Distance
	entry.Assignments = alloc.Assignments
	log.WithFields(logrus.Fields{
		"distance":  alloc.Distance,
		"lines":     len(order.Lines),
		"remaining": len(next),
	}).Debug("order committed")
	p.Observer.OrderFinished(entry)
	return entry, next
}

func (p *Processor) result(entries []ReportEntry, final Inventory) *RunResult {
	return &RunResult{
		Entries: entries,
		Final:   final,
		Summary: Summarize(entries),
	}
}
