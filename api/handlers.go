/*
handlers.go - HTTP API handlers for the pick planning service

PURPOSE:
  Exposes the planner via REST API. Handles HTTP request/response, JSON and
  CSV decoding, and delegates to the planner.

ENDPOINTS:
  Inventory:
    GET    /api/inventory           Current records and per-SKU totals
    PUT    /api/inventory           Replace from JSON records
    POST   /api/inventory/import    Replace from CSV (floor,aisle,sku,quantity)
    GET    /api/inventory/export    Current inventory as CSV

  Runs:
    POST   /api/runs                Plan orders against the current inventory
    GET    /api/runs                List runs, newest first (?limit=N)
    GET    /api/runs/{id}           One run with all entries
    POST   /api/plan                Dry run on inventory + orders in the body

  Order queue:
    POST   /api/orders              Stage order lines (JSON or CSV)
    GET    /api/orders              Staged orders
    POST   /api/orders/dispatch     Plan the next wave of staged orders now
    GET    /api/dispatch            Scheduler status

  Scenarios:
    GET    /api/scenarios           List demo warehouses
    GET    /api/scenarios/current   Currently loaded demo warehouse
    POST   /api/scenarios/load      Load a demo warehouse

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (loader conversions)
  3. Call the planner
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Invalid records, malformed bodies, batch too large
  - 404: Unknown run
  - 500: Store failures

  An unsatisfiable or flagged order is NOT an HTTP error: the run succeeds
  and the entry says what happened.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo warehouses
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/warp/pick-engine/loader"
	"github.com/warp/pick-engine/logging"
	"github.com/warp/pick-engine/picking"
	"github.com/warp/pick-engine/planner"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 16 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Planner   *planner.Planner
	Queue     picking.OrderQueue
	Scheduler *DispatchScheduler // nil when the server runs without one

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over a planner and its order queue.
func NewHandler(p *planner.Planner, queue picking.OrderQueue) *Handler {
	return &Handler{Planner: p, Queue: queue}
}

// =============================================================================
// INVENTORY
// =============================================================================

// GetInventory returns the current inventory.
// GET /api/inventory
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Planner.Inventory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(inv))
}

// ReplaceInventory replaces the inventory with JSON records.
// PUT /api/inventory
func (h *Handler) ReplaceInventory(w http.ResponseWriter, r *http.Request) {
	var req ReplaceInventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	inv, err := loader.InventoryFromJSON(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid inventory", err)
		return
	}
	h.replaceInventory(w, r, inv)
}

// ImportInventory replaces the inventory from a CSV body.
// POST /api/inventory/import
func (h *Handler) ImportInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := loader.ReadInventoryCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid inventory CSV", err)
		return
	}
	h.replaceInventory(w, r, inv)
}

func (h *Handler) replaceInventory(w http.ResponseWriter, r *http.Request, inv picking.Inventory) {
	if err := h.Planner.ReplaceInventory(r.Context(), inv); err != nil {
		writeError(w, statusFor(err), "Failed to replace inventory", err)
		return
	}
	writeJSON(w, http.StatusOK, toInventoryDTO(inv))
}

// ExportInventory writes the current inventory as CSV.
// GET /api/inventory/export
func (h *Handler) ExportInventory(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Planner.Inventory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load inventory", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="inventory.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := loader.WriteInventoryCSV(w, inv); err != nil {
		// headers are out, the client sees a truncated body
		logging.Logger().WithError(err).WithField("records", len(inv)).Error("inventory export failed")
	}
}

// =============================================================================
// RUNS
// =============================================================================

// CreateRun plans orders against the current inventory and stores the run.
// POST /api/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	lines, err := h.readOrderLines(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid orders", err)
		return
	}

	run, err := h.Planner.Plan(r.Context(), picking.GroupOrders(lines))
	if err != nil {
		writeError(w, statusFor(err), "Failed to plan orders", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(*run))
}

// ListRuns returns stored runs, newest first.
// GET /api/runs?limit=N
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Planner.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunListItemDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunListItemDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one stored run.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := picking.RunID(chi.URLParam(r, "id"))

	run, err := h.Planner.Run(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), "Failed to get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// DryRun plans the orders in the body against the inventory in the body.
// Nothing is stored.
// POST /api/plan
func (h *Handler) DryRun(w http.ResponseWriter, r *http.Request) {
	inv, orders, err := loader.DecodePlan(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan document", err)
		return
	}

	res, err := h.Planner.Simulate(r.Context(), inv, orders)
	if err != nil {
		writeError(w, statusFor(err), "Failed to plan orders", err)
		return
	}
	writeJSON(w, http.StatusOK, loader.ReportToJSON(res))
}

// =============================================================================
// ORDER QUEUE
// =============================================================================

// StageOrders appends order lines to the dispatch queue.
// POST /api/orders
func (h *Handler) StageOrders(w http.ResponseWriter, r *http.Request) {
	lines, err := h.readOrderLines(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid orders", err)
		return
	}

	if err := h.Queue.StageOrderLines(r.Context(), lines); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to stage orders", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"staged_lines": len(lines)})
}

// ListPendingOrders returns the staged orders.
// GET /api/orders
func (h *Handler) ListPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Queue.PendingOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read staged orders", err)
		return
	}

	lines := []loader.LineJSON{}
	for _, o := range orders {
		for _, l := range o.Lines {
			lines = append(lines, loader.LineJSON{OrderID: int(l.OrderID), SKU: string(l.SKU), Quantity: l.Quantity})
		}
	}
	writeJSON(w, http.StatusOK, OrdersRequest{Orders: lines})
}

// DispatchNow plans the next wave (up to the planner's MaxOrders) as one run.
// POST /api/orders/dispatch
func (h *Handler) DispatchNow(w http.ResponseWriter, r *http.Request) {
	var (
		run *picking.RunRecord
		err error
	)
	if h.Scheduler != nil {
		run, err = h.Scheduler.DispatchOnce(r.Context())
	} else {
		run, err = h.Planner.Dispatch(r.Context(), h.Queue)
	}
	if err != nil {
		writeError(w, statusFor(err), "Failed to dispatch orders", err)
		return
	}
	if run == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(*run))
}

// DispatchStatus reports the scheduler state and queue depth.
// GET /api/dispatch
func (h *Handler) DispatchStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Queue.PendingOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read staged orders", err)
		return
	}

	status := DispatchStatusDTO{PendingOrders: len(orders)}
	if h.Scheduler != nil {
		status.Enabled = h.Scheduler.Enabled
		status.Interval = h.Scheduler.Interval.String()
		last, lastErr := h.Scheduler.Last()
		if last != nil {
			item := toRunListItemDTO(*last)
			status.LastRun = &item
		}
		if lastErr != nil {
			status.LastError = lastErr.Error()
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// readOrderLines accepts either an OrdersRequest JSON body or, with
// Content-Type text/csv, an order_id,sku,quantity CSV body.
func (h *Handler) readOrderLines(w http.ResponseWriter, r *http.Request) ([]picking.OrderLine, error) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "text/csv" {
		return loader.ReadOrderLinesCSV(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	}

	var req OrdersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	return loader.LinesFromJSON(req.Orders)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, picking.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, picking.ErrInvalidRecord), errors.Is(err, planner.ErrTooManyOrders):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
