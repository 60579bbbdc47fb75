/*
scenarios.go - Demo warehouses for testing and demonstrations

PURPOSE:

	Provides pre-built warehouses that replace the current inventory and
	stage a batch of orders, each showing one behavior of the planner.

AVAILABLE SCENARIOS:

	single-floor: one floor, cost is the aisle span of the picks
	multi-floor:  same SKUs spread over three floors, floor changes cost 10
	depletion:    repeated orders drain stock until later ones are rejected
	first-fit:    a SKU stocked in several aisles, the first listed record wins

HOW SCENARIOS WORK:
 1. Replace the inventory
 2. Drop anything staged in the order queue
 3. Stage the scenario's order lines
 4. POST /api/orders/dispatch (or wait for the scheduler) to plan them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "multi-floor"}

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with ID, name, description
 2. Add its warehouse to 'warehouses'

NOTE:

	Loading a scenario discards the current inventory and the queue. Runs
	already stored are kept.

SEE ALSO:
  - handlers.go: DispatchNow
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/pick-engine/picking"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-floor",
		Name:        "Single Floor",
		Description: "Six aisles on one floor; route cost is the aisle span",
	},
	{
		ID:          "multi-floor",
		Name:        "Multi Floor",
		Description: "Three floors; every floor change adds a fixed penalty",
	},
	{
		ID:          "depletion",
		Name:        "Depletion",
		Description: "Orders drain a small stock until later orders are unsatisfiable",
	},
	{
		ID:          "first-fit",
		Name:        "First Fit",
		Description: "A SKU stocked in several aisles; the first record with enough wins",
	},
}

type warehouse struct {
	inventory picking.Inventory
	lines     []picking.OrderLine
}

func stock(floor, aisle int, sku string, qty int) picking.InventoryRecord {
	return picking.InventoryRecord{
		Location: picking.Location{Floor: floor, Aisle: aisle},
		SKU:      picking.SKU(sku),
		Quantity: qty,
	}
}

func line(order int, sku string, qty int) picking.OrderLine {
	return picking.OrderLine{OrderID: picking.OrderID(order), SKU: picking.SKU(sku), Quantity: qty}
}

var warehouses = map[string]warehouse{
	"single-floor": {
		inventory: picking.Inventory{
			stock(1, 1, "TSHIRT-M", 40),
			stock(1, 2, "TSHIRT-L", 40),
			stock(1, 3, "SOCKS", 100),
			stock(1, 4, "CAP", 25),
			stock(1, 5, "JACKET-M", 10),
			stock(1, 6, "JACKET-L", 10),
		},
		lines: []picking.OrderLine{
			line(1, "TSHIRT-M", 2), line(1, "CAP", 1),
			line(2, "SOCKS", 6),
			line(3, "TSHIRT-L", 1), line(3, "JACKET-L", 1), line(3, "SOCKS", 2),
		},
	},
	"multi-floor": {
		inventory: picking.Inventory{
			stock(1, 2, "MUG", 30),
			stock(2, 5, "PLATE", 30),
			stock(3, 1, "BOWL", 30),
			stock(3, 8, "SPOON", 200),
		},
		lines: []picking.OrderLine{
			line(10, "MUG", 1), line(10, "PLATE", 1),
			line(11, "BOWL", 2), line(11, "SPOON", 4),
			line(12, "MUG", 2), line(12, "PLATE", 2), line(12, "BOWL", 2),
		},
	},
	"depletion": {
		inventory: picking.Inventory{
			stock(1, 3, "LAMP", 5),
			stock(1, 7, "BULB", 12),
		},
		lines: []picking.OrderLine{
			line(20, "LAMP", 2), line(20, "BULB", 4),
			line(21, "LAMP", 2), line(21, "BULB", 4),
			line(22, "LAMP", 2), line(22, "BULB", 4),
			line(23, "BULB", 4),
		},
	},
	"first-fit": {
		inventory: picking.Inventory{
			stock(2, 9, "DRILL", 1),
			stock(1, 4, "DRILL", 3),
			stock(1, 1, "DRILL", 10),
			stock(1, 2, "BITS", 50),
		},
		lines: []picking.OrderLine{
			line(30, "DRILL", 1), line(30, "BITS", 5),
			line(31, "DRILL", 2),
			line(32, "DRILL", 2),
		},
	},
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available demo warehouses.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined warehouse and stages its orders.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, ok := warehouses[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"scenario": req.ScenarioID,
	})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	wh := warehouses[id]

	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = ""

	if err := h.Planner.ReplaceInventory(ctx, wh.inventory.Clone()); err != nil {
		return err
	}
	if _, err := h.Queue.TakeOrders(ctx, 0); err != nil {
		return err
	}
	if err := h.Queue.StageOrderLines(ctx, append([]picking.OrderLine(nil), wh.lines...)); err != nil {
		return err
	}

	h.currentScenario = id
	return nil
}
