// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/pick-engine/picking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	inventory picking.Inventory
	runs      []picking.RunRecord // oldest first
	byID      map[picking.RunID]int
	staged    []picking.OrderLine
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[picking.RunID]int)}
}

func (m *Memory) LoadInventory(_ context.Context) (picking.Inventory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inventory.Clone(), nil
}

func (m *Memory) ReplaceInventory(_ context.Context, inv picking.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventory = inv.Clone()
	return nil
}

// CommitRun appends the run and swaps the inventory under one lock.
func (m *Memory) CommitRun(_ context.Context, run picking.RunRecord, final picking.Inventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.Final = final.Clone()
	m.byID[run.ID] = len(m.runs)
	m.runs = append(m.runs, run)
	m.inventory = final.Clone()
	return nil
}

func (m *Memory) GetRun(_ context.Context, id picking.RunID) (*picking.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return nil, picking.ErrRunNotFound
	}
	run := m.runs[i]
	return &run, nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]picking.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.runs)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]picking.RunRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, m.runs[i])
	}
	return result, nil
}

func (m *Memory) StageOrderLines(_ context.Context, lines []picking.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = append(m.staged, lines...)
	return nil
}

func (m *Memory) PendingOrders(_ context.Context) ([]picking.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return picking.GroupOrders(append([]picking.OrderLine(nil), m.staged...)), nil
}

func (m *Memory) TakeOrders(_ context.Context, limit int) ([]picking.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := picking.SplitWave(m.staged, limit)
	orders := picking.GroupOrders(m.staged[:n:n])
	m.staged = append([]picking.OrderLine(nil), m.staged[n:]...)
	return orders, nil
}

func (m *Memory) RequeueOrderLines(_ context.Context, lines []picking.OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = append(append([]picking.OrderLine(nil), lines...), m.staged...)
	return nil
}
