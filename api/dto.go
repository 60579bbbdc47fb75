/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Record, line, entry
  and summary shapes are shared with the batch CLI's JSON report and live in
  the loader package; this file wraps them into request and response bodies.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Inventory:
    InventoryDTO, SKUTotalDTO, ReplaceInventoryRequest

  Runs:
    OrdersRequest, RunDTO, RunListItemDTO, DispatchStatusDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers through the loader conversions. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - loader/document.go: RecordJSON, LineJSON, EntryJSON, SummaryJSON
*/
package api

import (
	"time"

	"github.com/warp/pick-engine/loader"
	"github.com/warp/pick-engine/picking"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SKUTotalDTO is the quantity of one SKU summed over all locations.
type SKUTotalDTO struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// InventoryDTO is the current inventory with per-SKU totals.
type InventoryDTO struct {
	Records []loader.RecordJSON `json:"records"`
	Totals  []SKUTotalDTO       `json:"totals"`
}

// ReplaceInventoryRequest replaces the whole inventory.
type ReplaceInventoryRequest struct {
	Records []loader.RecordJSON `json:"records"`
}

// OrdersRequest carries flat order lines, grouped by contiguous order_id.
type OrdersRequest struct {
	Orders []loader.LineJSON `json:"orders"`
}

// RunDTO is a stored run with all its entries.
type RunDTO struct {
	ID          string              `json:"id"`
	StartedAt   string              `json:"started_at"`
	CompletedAt string              `json:"completed_at"`
	Summary     loader.SummaryJSON  `json:"summary"`
	Entries     []loader.EntryJSON  `json:"entries"`
	Inventory   []loader.RecordJSON `json:"inventory"`
}

// RunListItemDTO is a run without entries, for listings.
type RunListItemDTO struct {
	ID          string             `json:"id"`
	StartedAt   string             `json:"started_at"`
	CompletedAt string             `json:"completed_at"`
	Summary     loader.SummaryJSON `json:"summary"`
}

// DispatchStatusDTO describes the wave scheduler.
type DispatchStatusDTO struct {
	Enabled       bool            `json:"enabled"`
	Interval      string          `json:"interval,omitempty"`
	PendingOrders int             `json:"pending_orders"`
	LastRun       *RunListItemDTO `json:"last_run,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// ScenarioDTO represents a demo warehouse.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo warehouse.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toInventoryDTO(inv picking.Inventory) InventoryDTO {
	totals, skus := inv.Totals()
	dto := InventoryDTO{
		Records: loader.InventoryToJSON(inv),
		Totals:  make([]SKUTotalDTO, len(skus)),
	}
	for i, sku := range skus {
		dto.Totals[i] = SKUTotalDTO{SKU: string(sku), Quantity: totals[sku]}
	}
	return dto
}

func toRunListItemDTO(run picking.RunRecord) RunListItemDTO {
	return RunListItemDTO{
		ID:          string(run.ID),
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: run.CompletedAt.Format(time.RFC3339),
		Summary:     loader.SummaryToJSON(run.Summary),
	}
}

func toRunDTO(run picking.RunRecord) RunDTO {
	entries := make([]loader.EntryJSON, len(run.Entries))
	for i, e := range run.Entries {
		entries[i] = loader.EntryToJSON(e)
	}
	return RunDTO{
		ID:          string(run.ID),
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: run.CompletedAt.Format(time.RFC3339),
		Summary:     loader.SummaryToJSON(run.Summary),
		Entries:     entries,
		Inventory:   loader.InventoryToJSON(run.Final),
	}
}
