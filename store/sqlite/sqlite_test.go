package sqlite

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pick-engine/picking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testInventory() picking.Inventory {
	return picking.Inventory{
		{Location: picking.Location{Floor: 2, Aisle: 9}, SKU: "B", Quantity: 4},
		{Location: picking.Location{Floor: 1, Aisle: 1}, SKU: "A", Quantity: 5},
		{Location: picking.Location{Floor: 1, Aisle: 1}, SKU: "A", Quantity: 2},
	}
}

func TestInventory_KeepsRecordOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, err := s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.ReplaceInventory(ctx, testInventory()))
	inv, err := s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, testInventory(), inv)

	// replacing drops the previous records
	require.NoError(t, s.ReplaceInventory(ctx, testInventory()[:1]))
	inv, err = s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Len(t, inv, 1)
}

func planRun(t *testing.T, id picking.RunID, inv picking.Inventory, orders ...picking.Order) picking.RunRecord {
	t.Helper()
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	started := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	res, err := picking.NewProcessor(picking.WithLogger(quiet)).Run(context.Background(), inv, orders)
	require.NoError(t, err)
	return picking.RunRecord{
		ID:          id,
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
		Entries:     res.Entries,
		Summary:     res.Summary,
		Final:       res.Final,
	}
}

func order(id int, sku string, qty int) picking.Order {
	return picking.Order{
		ID:    picking.OrderID(id),
		Lines: []picking.OrderLine{{OrderID: picking.OrderID(id), SKU: picking.SKU(sku), Quantity: qty}},
	}
}

func TestCommitRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceInventory(ctx, testInventory()))

	// GIVEN a run with a committed, an unknown-SKU and a short-stock order
	run := planRun(t, "run-1", testInventory(), order(1, "B", 4), order(2, "Z", 1), order(3, "A", 6))

	// WHEN it is committed
	require.NoError(t, s.CommitRun(ctx, run, run.Final))

	// THEN the inventory is the run's final inventory
	inv, err := s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.Final, inv)
	assert.Equal(t, 0, inv.TotalFor("B"))

	// AND the run reads back with entries, errors and summary intact
	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.True(t, run.CompletedAt.Equal(got.CompletedAt))
	assert.Equal(t, run.Final, got.Final)
	assert.True(t, run.Summary.FillRate.Equal(got.Summary.FillRate))
	assert.Equal(t, run.Summary.TotalDistance, got.Summary.TotalDistance)

	require.Len(t, got.Entries, 3)
	assert.Equal(t, picking.StateCommitted, got.Entries[0].State)
	assert.Equal(t, run.Entries[0].Assignments, got.Entries[0].Assignments)
	assert.NoError(t, got.Entries[0].Err)

	assert.ErrorIs(t, got.Entries[1].Err, picking.ErrUnknownSKU)
	assert.Equal(t, run.Entries[1].Err.Error(), got.Entries[1].Err.Error())
	assert.ErrorIs(t, got.Entries[2].Err, picking.ErrInsufficientStock)
	assert.True(t, got.Entries[2].Unsatisfiable)
}

func TestCommitRun_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceInventory(ctx, testInventory()))

	run := planRun(t, "dup", testInventory(), order(1, "A", 1))
	require.NoError(t, s.CommitRun(ctx, run, run.Final))
	before, err := s.LoadInventory(ctx)
	require.NoError(t, err)

	// a second commit with the same ID must not touch the inventory
	err = s.CommitRun(ctx, run, picking.Inventory{})
	require.Error(t, err)

	after, err := s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGetRun_NotFound(t *testing.T) {
	_, err := newTestStore(t).GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, picking.ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []picking.RunID{"r1", "r2", "r3"} {
		run := planRun(t, id, testInventory(), order(1, "A", 1))
		require.NoError(t, s.CommitRun(ctx, run, run.Final))
	}

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, picking.RunID("r3"), all[0].ID)
	assert.Equal(t, picking.RunID("r1"), all[2].ID)
	assert.Len(t, all[0].Entries, 1)

	two, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestOrderQueue_StageAndTake(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// GIVEN two staging calls, the second continuing order 8
	require.NoError(t, s.StageOrderLines(ctx, []picking.OrderLine{
		{OrderID: 7, SKU: "A", Quantity: 1},
		{OrderID: 7, SKU: "B", Quantity: 2},
		{OrderID: 8, SKU: "A", Quantity: 1},
	}))
	require.NoError(t, s.StageOrderLines(ctx, []picking.OrderLine{
		{OrderID: 8, SKU: "C", Quantity: 3},
	}))

	// WHEN the queue is peeked
	pending, err := s.PendingOrders(ctx)
	require.NoError(t, err)

	// THEN lines are grouped in staging order
	require.Len(t, pending, 2)
	assert.Equal(t, picking.OrderID(7), pending[0].ID)
	assert.Equal(t, picking.SKU("B"), pending[0].Lines[1].SKU)
	assert.Len(t, pending[1].Lines, 2)

	// AND taking drains the queue
	taken, err := s.TakeOrders(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, pending, taken)

	left, err := s.PendingOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestOrderQueue_TakeLimitAndRequeue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.StageOrderLines(ctx, []picking.OrderLine{
		{OrderID: 1, SKU: "A", Quantity: 1},
		{OrderID: 1, SKU: "B", Quantity: 1},
		{OrderID: 2, SKU: "A", Quantity: 2},
		{OrderID: 3, SKU: "C", Quantity: 3},
	}))

	// WHEN a wave of two orders is taken
	taken, err := s.TakeOrders(ctx, 2)
	require.NoError(t, err)
	require.Len(t, taken, 2)
	assert.Len(t, taken[0].Lines, 2)

	left, err := s.PendingOrders(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, picking.OrderID(3), left[0].ID)

	// AND order 4 arrives before the wave is put back
	require.NoError(t, s.StageOrderLines(ctx, []picking.OrderLine{{OrderID: 4, SKU: "A", Quantity: 1}}))
	var lines []picking.OrderLine
	for _, o := range taken {
		lines = append(lines, o.Lines...)
	}
	require.NoError(t, s.RequeueOrderLines(ctx, lines))

	// THEN the requeued wave is back at the head, in its original order
	pending, err := s.PendingOrders(ctx)
	require.NoError(t, err)
	ids := make([]picking.OrderID, len(pending))
	for i, o := range pending {
		ids[i] = o.ID
	}
	assert.Equal(t, []picking.OrderID{1, 2, 3, 4}, ids)
	assert.Equal(t, picking.SKU("B"), pending[0].Lines[1].SKU)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.ReplaceInventory(ctx, testInventory()))
	run := planRun(t, "r", testInventory(), order(1, "A", 1))
	require.NoError(t, s.CommitRun(ctx, run, run.Final))

	require.NoError(t, s.Reset(ctx))

	inv, err := s.LoadInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inv)
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
