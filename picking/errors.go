/*
errors.go - Error types for the planning engine

ERROR CATEGORIES:
  1. Unsatisfiable orders - recoverable per order, the run continues
  2. Internal consistency - allocator and inventory disagree; the order is
     flagged and left uncommitted, the run continues
  3. Invalid records - loader input that breaks record invariants

USAGE:
  if picking.IsUnsatisfiable(entry.Err) {
      // expected outcome, nothing was reserved
  }
  if picking.IsInternal(entry.Err) {
      // logic defect, surface it
  }
*/
package picking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownSKU is returned when an order line names a SKU with no stock record.
	ErrUnknownSKU = errors.New("sku not in inventory")

	// ErrInsufficientStock is returned when no single location holds enough of a SKU.
	ErrInsufficientStock = errors.New("no location with sufficient quantity")

	// ErrInconsistentInventory is returned when a commit would drive a record negative.
	ErrInconsistentInventory = errors.New("inventory inconsistent with allocation")

	// ErrRecordNotFound is returned when a commit cannot find the record an
	// assignment points at.
	ErrRecordNotFound = errors.New("inventory record not found")

	// ErrInvalidRecord is returned by validation of loader input.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrRunNotFound is returned by stores for an unknown run ID.
	ErrRunNotFound = errors.New("run not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// UnsatisfiableError explains why an order could not be fully assigned.
type UnsatisfiableError struct {
	OrderID   OrderID
	SKU       SKU
	Requested int
	Reason    error // ErrUnknownSKU or ErrInsufficientStock
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("order %d: %d x %s: %v", e.OrderID, e.Requested, e.SKU, e.Reason)
}

func (e *UnsatisfiableError) Unwrap() error {
	return e.Reason
}

// ConsistencyError reports a commit that does not match the inventory.
type ConsistencyError struct {
	OrderID  OrderID
	SKU      SKU
	Location Location
	Quantity int // quantity the record would have been left with
	Reason   error
}

func (e *ConsistencyError) Error() string {
	if errors.Is(e.Reason, ErrRecordNotFound) {
		return fmt.Sprintf("order %d: no record for %s at %s", e.OrderID, e.SKU, e.Location)
	}
	return fmt.Sprintf("order %d: negative stock for %s at %s (%d)", e.OrderID, e.SKU, e.Location, e.Quantity)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Reason
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsUnsatisfiable reports whether err is an order-level allocation failure.
func IsUnsatisfiable(err error) bool {
	return errors.Is(err, ErrUnknownSKU) || errors.Is(err, ErrInsufficientStock)
}

// IsInternal reports whether err indicates a defect rather than bad luck.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInconsistentInventory) || errors.Is(err, ErrRecordNotFound)
}
