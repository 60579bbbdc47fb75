/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Inventory replace / import / export
- Runs: create, list, get, dry run
- Order queue: stage, list, dispatch
- Error statuses and the metrics endpoint
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/metrics"
	"github.com/warp/pick-engine/picking"
	"github.com/warp/pick-engine/planner"
	"github.com/warp/pick-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	proc := picking.NewProcessor(picking.WithLogger(quiet), picking.WithObserver(metrics.Observer{}))

	return NewHandler(planner.New(store, proc), store)
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

const jsonType = "application/json"

const seedInventory = `{"records": [
	{"floor": 1, "aisle": 2, "sku": "A", "quantity": 5},
	{"floor": 2, "aisle": 5, "sku": "B", "quantity": 5},
	{"floor": 1, "aisle": 9, "sku": "A", "quantity": 1}
]}`

func seededRouter(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{})
	rr := do(t, router, http.MethodPut, "/api/inventory", jsonType, seedInventory)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return h, router
}

// =============================================================================
// INVENTORY
// =============================================================================

func TestInventory_ReplaceAndGet(t *testing.T) {
	_, router := seededRouter(t)

	rr := do(t, router, http.MethodGet, "/api/inventory", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	inv := decode[InventoryDTO](t, rr)
	assert.Len(t, inv.Records, 3)
	assert.Equal(t, []SKUTotalDTO{{SKU: "A", Quantity: 6}, {SKU: "B", Quantity: 5}}, inv.Totals)
}

func TestInventory_ReplaceRejectsInvalidRecord(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPut, "/api/inventory", jsonType,
		`{"records": [{"floor": 1, "aisle": 1, "sku": "A", "quantity": -2}]}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	assert.Equal(t, "Invalid inventory", resp.Error)
	assert.Contains(t, resp.Details, "inventory[0]")
}

func TestInventory_UnknownFieldRejected(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPut, "/api/inventory", jsonType, `{"rows": []}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestInventory_ImportAndExportCSV(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPost, "/api/inventory/import", "text/csv",
		"floor,aisle,sku,quantity\n3,1,Z,7\n1,1,Y,2\n")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, router, http.MethodGet, "/api/inventory/export", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Equal(t, "floor,aisle,sku,quantity\n3,1,Z,7\n1,1,Y,2\n", rr.Body.String())
}

// hangupWriter is a client that went away after the headers.
type hangupWriter struct {
	*httptest.ResponseRecorder
}

func (hangupWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestInventory_ExportWriteFailureIsLogged(t *testing.T) {
	h, _ := seededRouter(t)
	hook := test.NewLocal(logging.Logger())
	t.Cleanup(hook.Reset)

	w := hangupWriter{httptest.NewRecorder()}
	h.ExportInventory(w, httptest.NewRequest(http.MethodGet, "/api/inventory/export", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "inventory export failed", entry.Message)
	assert.Equal(t, 3, entry.Data["records"])
}

func TestInventory_ImportBadCSV(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPost, "/api/inventory/import", "text/csv", "1,1,Y\n")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// RUNS
// =============================================================================

func TestCreateRun_PlansAgainstStoredInventory(t *testing.T) {
	_, router := seededRouter(t)

	// GIVEN A at F1/A2 and B at F2/A5
	// WHEN order 1 takes one of each and order 2 asks for an unknown SKU
	rr := do(t, router, http.MethodPost, "/api/runs", jsonType, `{"orders": [
		{"order_id": 1, "sku": "A", "quantity": 1},
		{"order_id": 1, "sku": "B", "quantity": 1},
		{"order_id": 2, "sku": "C", "quantity": 1}
	]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// THEN order 1 costs 3 aisles plus one floor change
	run := decode[RunDTO](t, rr)
	require.Len(t, run.Entries, 2)
	require.NotNil(t, run.Entries[0].Distance)
	assert.Equal(t, 13, *run.Entries[0].Distance)
	assert.Equal(t, "committed", run.Entries[0].State)
	assert.True(t, run.Entries[1].Unsatisfiable)
	assert.Contains(t, run.Entries[1].Error, "sku not in inventory")
	assert.Equal(t, "0.5", run.Summary.FillRate)

	// AND the stored inventory was drawn down
	inv := decode[InventoryDTO](t, do(t, router, http.MethodGet, "/api/inventory", "", ""))
	assert.Equal(t, []SKUTotalDTO{{SKU: "A", Quantity: 5}, {SKU: "B", Quantity: 4}}, inv.Totals)

	// AND the run can be read back and listed
	got := do(t, router, http.MethodGet, "/api/runs/"+run.ID, "", "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, run.ID, decode[RunDTO](t, got).ID)

	list := decode[[]RunListItemDTO](t, do(t, router, http.MethodGet, "/api/runs?limit=5", "", ""))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Summary.Committed)
}

func TestCreateRun_CSVBody(t *testing.T) {
	_, router := seededRouter(t)

	rr := do(t, router, http.MethodPost, "/api/runs", "text/csv; charset=utf-8",
		"order_id,sku,quantity\n7,A,5\n8,A,1\n9,A,1\n")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	run := decode[RunDTO](t, rr)
	require.Len(t, run.Entries, 3)
	assert.Equal(t, "committed", run.Entries[0].State) // F1/A2 emptied
	assert.Equal(t, "committed", run.Entries[1].State) // F1/A9
	assert.Equal(t, "rejected", run.Entries[2].State)
}

func TestCreateRun_InvalidLine(t *testing.T) {
	_, router := seededRouter(t)

	rr := do(t, router, http.MethodPost, "/api/runs", jsonType,
		`{"orders": [{"order_id": 1, "sku": "A", "quantity": 0}]}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateRun_TooManyOrders(t *testing.T) {
	h, router := seededRouter(t)
	h.Planner.MaxOrders = 1

	rr := do(t, router, http.MethodPost, "/api/runs", jsonType, `{"orders": [
		{"order_id": 1, "sku": "A", "quantity": 1},
		{"order_id": 2, "sku": "A", "quantity": 1}
	]}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRun_NotFound(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodGet, "/api/runs/does-not-exist", "", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodGet, "/api/runs?limit=abc", "", "")

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDryRun_StoresNothing(t *testing.T) {
	_, router := seededRouter(t)

	rr := do(t, router, http.MethodPost, "/api/plan", jsonType, `{
		"inventory": [{"floor": 4, "aisle": 1, "sku": "Q", "quantity": 2}],
		"orders": [{"order_id": 1, "sku": "Q", "quantity": 2}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	report := decode[struct {
		Entries   []json.RawMessage `json:"entries"`
		Inventory []json.RawMessage `json:"inventory"`
	}](t, rr)
	assert.Len(t, report.Entries, 1)
	assert.Empty(t, report.Inventory)

	list := decode[[]RunListItemDTO](t, do(t, router, http.MethodGet, "/api/runs", "", ""))
	assert.Empty(t, list)
	inv := decode[InventoryDTO](t, do(t, router, http.MethodGet, "/api/inventory", "", ""))
	assert.Len(t, inv.Records, 3)
}

// =============================================================================
// ORDER QUEUE
// =============================================================================

func TestStageAndDispatch(t *testing.T) {
	_, router := seededRouter(t)

	// GIVEN two staging requests
	rr := do(t, router, http.MethodPost, "/api/orders", jsonType,
		`{"orders": [{"order_id": 1, "sku": "A", "quantity": 2}]}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	rr = do(t, router, http.MethodPost, "/api/orders", "text/csv", "2,B,1\n")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	pending := decode[OrdersRequest](t, do(t, router, http.MethodGet, "/api/orders", "", ""))
	assert.Len(t, pending.Orders, 2)

	status := decode[DispatchStatusDTO](t, do(t, router, http.MethodGet, "/api/dispatch", "", ""))
	assert.Equal(t, 2, status.PendingOrders)

	// WHEN the queue is dispatched
	rr = do(t, router, http.MethodPost, "/api/orders/dispatch", "", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// THEN both orders are planned in one run and the queue is empty
	run := decode[RunDTO](t, rr)
	assert.Equal(t, 2, run.Summary.Committed)

	pending = decode[OrdersRequest](t, do(t, router, http.MethodGet, "/api/orders", "", ""))
	assert.Empty(t, pending.Orders)

	rr = do(t, router, http.MethodPost, "/api/orders/dispatch", "", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestDispatchStatus_WithScheduler(t *testing.T) {
	h, router := seededRouter(t)
	h.Scheduler = NewDispatchScheduler(h.Planner, h.Queue)

	rr := do(t, router, http.MethodPost, "/api/orders", jsonType,
		`{"orders": [{"order_id": 1, "sku": "A", "quantity": 1}]}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/orders/dispatch", "", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	run := decode[RunDTO](t, rr)

	status := decode[DispatchStatusDTO](t, do(t, router, http.MethodGet, "/api/dispatch", "", ""))
	assert.True(t, status.Enabled)
	assert.Equal(t, "1m0s", status.Interval)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, run.ID, status.LastRun.ID)
	assert.Empty(t, status.LastError)
}

func TestDispatchScheduler_TicksUntilStopped(t *testing.T) {
	h, router := seededRouter(t)
	ds := NewDispatchScheduler(h.Planner, h.Queue)
	ds.Interval = 10 * time.Millisecond

	rr := do(t, router, http.MethodPost, "/api/orders", jsonType,
		`{"orders": [{"order_id": 7, "sku": "B", "quantity": 3}]}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	// WHEN the scheduler runs for a few ticks
	ds.Start()
	require.Eventually(t, func() bool {
		run, _ := ds.Last()
		return run != nil
	}, 2*time.Second, 10*time.Millisecond)
	ds.Stop()
	ds.Stop()

	// THEN the staged order was planned and the queue is empty
	run, err := ds.Last()
	require.NoError(t, err)
	assert.Equal(t, picking.OrderID(7), run.Entries[0].OrderID)
	assert.Equal(t, picking.StateCommitted, run.Entries[0].State)

	pending := decode[OrdersRequest](t, do(t, router, http.MethodGet, "/api/orders", "", ""))
	assert.Empty(t, pending.Orders)
}

func TestDispatchScheduler_DisabledDoesNotStart(t *testing.T) {
	h, _ := seededRouter(t)
	ds := NewDispatchScheduler(h.Planner, h.Queue)
	ds.Enabled = false

	ds.Start()
	ds.Stop()

	run, err := ds.Last()
	assert.Nil(t, run)
	assert.NoError(t, err)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	metrics.RegisterDefault()
	_, router := seededRouter(t)
	do(t, router, http.MethodPost, "/api/runs", jsonType, `{"orders": [{"order_id": 1, "sku": "A", "quantity": 1}]}`)

	rr := do(t, router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "pick_runs_total")
	assert.Contains(t, body, `pick_orders_total{state="committed"}`)
	assert.Contains(t, body, `method="POST",route="/api/runs`)
}

func TestWriteLimit(t *testing.T) {
	h := setupTestHandler(t)
	router := NewRouter(h, RouterOptions{WriteRate: 0.001, WriteBurst: 1})

	// GIVEN a bucket holding a single token
	rr := do(t, router, http.MethodPut, "/api/inventory", jsonType, seedInventory)
	require.Equal(t, http.StatusOK, rr.Code)

	// THEN the next write is refused and reads still pass
	rr = do(t, router, http.MethodPut, "/api/inventory", jsonType, seedInventory)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	rr = do(t, router, http.MethodGet, "/api/inventory", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
