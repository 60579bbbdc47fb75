/*
Package picking provides the core pick-location planning engine.

PURPOSE:
  Given an inventory snapshot (quantity per SKU per floor/aisle location) and
  a sequence of orders, decide for each order which locations to pick from,
  report a route cost, and decrement the inventory that backs each fulfilled
  order.

KEY CONCEPTS IN THIS FILE (types.go):
  - Location: a (floor, aisle) storage position
  - InventoryRecord / Inventory: quantity of one SKU at one location
  - OrderLine / Order: SKU quantities requested together
  - Assignment: the location chosen for one order line
  - ReportEntry: what a run says about one order

ORDERING:
  Inventory order is significant. For a given SKU, locations are tried in the
  order their records first appear in the inventory (first-seen-first-tried).
  Compaction after a commit preserves relative order of the survivors.

USAGE:
  proc := picking.NewProcessor()
  result, err := proc.Run(ctx, inventory, orders)
  for _, e := range result.Entries {
      fmt.Println(e)
  }

SEE ALSO:
  - index.go: SKU -> locations index rebuilt per order
  - allocator.go: first-fit greedy assignment
  - distance.go: route cost of a set of locations
  - mutator.go: commit of a successful order into the inventory
  - processor.go: the sequential order loop
*/
package picking

import (
	"fmt"
)

// MaxSKULength is the longest SKU accepted by loaders.
const MaxSKULength = 49

// =============================================================================
// LOCATION
// =============================================================================

// Location identifies a storage position by floor and aisle.
type Location struct {
	Floor int `json:"floor"`
	Aisle int `json:"aisle"`
}

// Less orders locations by floor, then aisle.
func (l Location) Less(o Location) bool {
	if l.Floor != o.Floor {
		return l.Floor < o.Floor
	}
	return l.Aisle < o.Aisle
}

func (l Location) String() string {
	return fmt.Sprintf("F%d/A%d", l.Floor, l.Aisle)
}

// =============================================================================
// INVENTORY
// =============================================================================

// SKU names a product type.
type SKU string

// InventoryRecord is the quantity of one SKU stored at one location.
type InventoryRecord struct {
	Location Location
	SKU      SKU
	Quantity int
}

// Inventory is the ordered set of records the engine plans against.
// Order matters: it decides which location is tried first for a SKU.
type Inventory []InventoryRecord

// Clone returns a copy that shares no backing array with inv.
func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	copy(out, inv)
	return out
}

// TotalFor sums the quantity of a SKU across all locations.
func (inv Inventory) TotalFor(sku SKU) int {
	total := 0
	for _, r := range inv {
		if r.SKU == sku {
			total += r.Quantity
		}
	}
	return total
}

// Totals returns per-SKU quantities and the SKUs in first-seen order.
func (inv Inventory) Totals() (map[SKU]int, []SKU) {
	totals := make(map[SKU]int)
	var order []SKU
	for _, r := range inv {
		if _, ok := totals[r.SKU]; !ok {
			order = append(order, r.SKU)
		}
		totals[r.SKU] += r.Quantity
	}
	return totals, order
}

// Validate checks the invariants a loader must guarantee for a record.
func (r InventoryRecord) Validate() error {
	if r.SKU == "" {
		return fmt.Errorf("%w: empty sku", ErrInvalidRecord)
	}
	if len(r.SKU) > MaxSKULength {
		return fmt.Errorf("%w: sku %q longer than %d characters", ErrInvalidRecord, r.SKU, MaxSKULength)
	}
	if r.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %d for sku %s at %s", ErrInvalidRecord, r.Quantity, r.SKU, r.Location)
	}
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderID int

// OrderLine requests a quantity of one SKU for an order.
type OrderLine struct {
	OrderID  OrderID
	SKU      SKU
	Quantity int
}

// Validate checks the invariants a loader must guarantee for a line.
func (l OrderLine) Validate() error {
	if l.SKU == "" {
		return fmt.Errorf("%w: order %d: empty sku", ErrInvalidRecord, l.OrderID)
	}
	if len(l.SKU) > MaxSKULength {
		return fmt.Errorf("%w: order %d: sku %q longer than %d characters", ErrInvalidRecord, l.OrderID, l.SKU, MaxSKULength)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("%w: order %d: quantity must be positive, got %d", ErrInvalidRecord, l.OrderID, l.Quantity)
	}
	return nil
}

// Order is a set of lines picked together (a box).
type Order struct {
	ID    OrderID
	Lines []OrderLine
}

// GroupOrders splits lines into orders at every change of order ID.
// Only contiguous runs are grouped: an ID that reappears after another
// ID starts a new order.
func GroupOrders(lines []OrderLine) []Order {
	var orders []Order
	for _, line := range lines {
		n := len(orders)
		if n == 0 || orders[n-1].ID != line.OrderID {
			orders = append(orders, Order{ID: line.OrderID})
			n++
		}
		orders[n-1].Lines = append(orders[n-1].Lines, line)
	}
	return orders
}

// Assignment is the location chosen to pick one order line from.
type Assignment struct {
	Line     OrderLine
	Location Location
}

// Locations extracts the picked locations, in assignment order.
func Locations(assignments []Assignment) []Location {
	locs := make([]Location, len(assignments))
	for i, a := range assignments {
		locs[i] = a.Location
	}
	return locs
}

// =============================================================================
// REPORT
// =============================================================================

// OrderState tracks an order through a run.
//
//	Pending -> Indexed -> Allocated -> Committed | Rejected | Flagged
type OrderState string

const (
	StatePending   OrderState = "pending"
	StateIndexed   OrderState = "indexed"
	StateAllocated OrderState = "allocated"
	StateCommitted OrderState = "committed"
	StateRejected  OrderState = "rejected"
	StateFlagged   OrderState = "flagged" // internal consistency error; inventory left as before
)

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	return s == StateCommitted || s == StateRejected || s == StateFlagged
}

// ReportEntry is the outcome of one order.
type ReportEntry struct {
	OrderID       OrderID
	State         OrderState
	Distance      int
	Unsatisfiable bool
	Assignments   []Assignment
	Err           error
}

func (e ReportEntry) String() string {
	switch e.State {
	case StateCommitted:
		return fmt.Sprintf("Order %d: distance = %d", e.OrderID, e.Distance)
	case StateFlagged:
		return fmt.Sprintf("Order %d: internal error: %v", e.OrderID, e.Err)
	default:
		return fmt.Sprintf("Order %d: unsatisfiable", e.OrderID)
	}
}
