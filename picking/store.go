/*
store.go - Storage interface for the planning service

PURPOSE:
  The engine itself keeps no state between runs. A long-lived service (the
  HTTP API, or a CLI archiving into a database) needs somewhere to keep the
  authoritative inventory and the runs planned against it.

ATOMIC COMMIT:
  CommitRun writes the run record AND replaces the inventory in one step.
  Either both land or neither does, so the stored inventory always equals
  the Final inventory of the last stored run (or the last replacement).

IMPLEMENTATIONS:
  - picking/store/memory.go: in-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite
*/
package picking

import (
	"context"
	"time"
)

// RunID identifies a stored run.
type RunID string

// RunRecord is a finished run as kept by a Store.
type RunRecord struct {
	ID          RunID
	StartedAt   time.Time
	CompletedAt time.Time
	Entries     []ReportEntry
	Summary     Summary
	Final       Inventory
}

// Store keeps the current inventory and the history of runs.
type Store interface {
	// LoadInventory returns the current inventory in record order.
	LoadInventory(ctx context.Context) (Inventory, error)

	// ReplaceInventory discards the current inventory and stores inv.
	ReplaceInventory(ctx context.Context, inv Inventory) error

	// CommitRun stores run and makes final the current inventory atomically.
	CommitRun(ctx context.Context, run RunRecord, final Inventory) error

	// GetRun returns a stored run or ErrRunNotFound.
	GetRun(ctx context.Context, id RunID) (*RunRecord, error)

	// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// OrderQueue holds order lines staged for a later run.
type OrderQueue interface {
	// StageOrderLines appends lines after any already staged.
	StageOrderLines(ctx context.Context, lines []OrderLine) error

	// PendingOrders returns the staged orders, grouped, without removing them.
	PendingOrders(ctx context.Context) ([]Order, error)

	// TakeOrders removes and returns up to limit staged orders, oldest
	// first. limit <= 0 takes every staged order. The rest stay queued.
	TakeOrders(ctx context.Context, limit int) ([]Order, error)

	// RequeueOrderLines puts lines back at the head of the queue, ahead of
	// anything staged since they were taken.
	RequeueOrderLines(ctx context.Context, lines []OrderLine) error
}

// SplitWave returns how many of the staged lines belong to the first limit
// orders of their grouping. limit <= 0 means all of them.
func SplitWave(lines []OrderLine, limit int) int {
	if limit <= 0 {
		return len(lines)
	}
	orders := 0
	for i, l := range lines {
		if i == 0 || lines[i-1].OrderID != l.OrderID {
			orders++
			if orders > limit {
				return i
			}
		}
	}
	return len(lines)
}
