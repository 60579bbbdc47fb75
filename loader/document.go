package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/warp/pick-engine/picking"
)

// =============================================================================
// JSON SHAPES
// =============================================================================

// RecordJSON is one inventory record.
type RecordJSON struct {
	Floor    int    `json:"floor"`
	Aisle    int    `json:"aisle"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// LineJSON is one order line. Lines are grouped into orders by contiguous order_id.
type LineJSON struct {
	OrderID  int    `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// PlanDocument is an inventory plus orders, as accepted by the dry-run API.
type PlanDocument struct {
	Inventory []RecordJSON `json:"inventory"`
	Orders    []LineJSON   `json:"orders"`
}

// PickJSON is one assigned line.
type PickJSON struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Floor    int    `json:"floor"`
	Aisle    int    `json:"aisle"`
}

// EntryJSON is one report entry. Distance is omitted for failed orders.
type EntryJSON struct {
	OrderID       int        `json:"order_id"`
	State         string     `json:"state"`
	Distance      *int       `json:"distance,omitempty"`
	Unsatisfiable bool       `json:"unsatisfiable,omitempty"`
	Error         string     `json:"error,omitempty"`
	Picks         []PickJSON `json:"picks,omitempty"`
}

// SummaryJSON mirrors picking.Summary with decimals as strings.
type SummaryJSON struct {
	Orders        int    `json:"orders"`
	Committed     int    `json:"committed"`
	Rejected      int    `json:"rejected"`
	Flagged       int    `json:"flagged"`
	UnitsPicked   int    `json:"units_picked"`
	TotalDistance int    `json:"total_distance"`
	FillRate      string `json:"fill_rate"`
	MeanDistance  string `json:"mean_distance"`
}

// ReportJSON is the full output of a run.
type ReportJSON struct {
	Entries   []EntryJSON  `json:"entries"`
	Summary   SummaryJSON  `json:"summary"`
	Inventory []RecordJSON `json:"inventory"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// DecodePlan reads a PlanDocument and validates every record.
func DecodePlan(r io.Reader) (picking.Inventory, []picking.Order, error) {
	var doc PlanDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("invalid plan document: %w", err)
	}
	inv, err := InventoryFromJSON(doc.Inventory)
	if err != nil {
		return nil, nil, err
	}
	lines, err := LinesFromJSON(doc.Orders)
	if err != nil {
		return nil, nil, err
	}
	return inv, picking.GroupOrders(lines), nil
}

// InventoryFromJSON converts and validates records.
func InventoryFromJSON(records []RecordJSON) (picking.Inventory, error) {
	inv := make(picking.Inventory, 0, len(records))
	for i, r := range records {
		rec := picking.InventoryRecord{
			Location: picking.Location{Floor: r.Floor, Aisle: r.Aisle},
			SKU:      picking.SKU(r.SKU),
			Quantity: r.Quantity,
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("inventory[%d]: %w", i, err)
		}
		inv = append(inv, rec)
	}
	return inv, nil
}

// LinesFromJSON converts and validates order lines.
func LinesFromJSON(lines []LineJSON) ([]picking.OrderLine, error) {
	out := make([]picking.OrderLine, 0, len(lines))
	for i, l := range lines {
		line := picking.OrderLine{
			OrderID:  picking.OrderID(l.OrderID),
			SKU:      picking.SKU(l.SKU),
			Quantity: l.Quantity,
		}
		if err := line.Validate(); err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		out = append(out, line)
	}
	return out, nil
}

// InventoryToJSON converts inventory for output. Never returns nil.
func InventoryToJSON(inv picking.Inventory) []RecordJSON {
	out := make([]RecordJSON, len(inv))
	for i, r := range inv {
		out[i] = RecordJSON{Floor: r.Location.Floor, Aisle: r.Location.Aisle, SKU: string(r.SKU), Quantity: r.Quantity}
	}
	return out
}

// EntryToJSON converts one report entry.
func EntryToJSON(e picking.ReportEntry) EntryJSON {
	out := EntryJSON{
		OrderID:       int(e.OrderID),
		State:         string(e.State),
		Unsatisfiable: e.Unsatisfiable,
	}
	if e.State == picking.StateCommitted {
		d := e.Distance
		out.Distance = &d
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	for _, a := range e.Assignments {
		out.Picks = append(out.Picks, PickJSON{
			SKU:      string(a.Line.SKU),
			Quantity: a.Line.Quantity,
			Floor:    a.Location.Floor,
			Aisle:    a.Location.Aisle,
		})
	}
	return out
}

// SummaryToJSON converts a run summary.
func SummaryToJSON(s picking.Summary) SummaryJSON {
	return SummaryJSON{
		Orders:        s.Orders,
		Committed:     s.Committed,
		Rejected:      s.Rejected,
		Flagged:       s.Flagged,
		UnitsPicked:   s.UnitsPicked,
		TotalDistance: s.TotalDistance,
		FillRate:      s.FillRate.String(),
		MeanDistance:  s.MeanDistance.String(),
	}
}

// ReportToJSON converts a whole run result.
func ReportToJSON(res *picking.RunResult) ReportJSON {
	entries := make([]EntryJSON, len(res.Entries))
	for i, e := range res.Entries {
		entries[i] = EntryToJSON(e)
	}
	return ReportJSON{
		Entries:   entries,
		Summary:   SummaryToJSON(res.Summary),
		Inventory: InventoryToJSON(res.Final),
	}
}

// =============================================================================
// REPORT OUTPUT
// =============================================================================

// WriteReport writes a run as "text" (one line per order) or "json".
func WriteReport(w io.Writer, res *picking.RunResult, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		for _, e := range res.Entries {
			if _, err := fmt.Fprintln(w, e.String()); err != nil {
				return err
			}
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ReportToJSON(res))
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
