/*
mutator.go - Commit of a successful allocation into the inventory

PURPOSE:
  Only a fully satisfied order is written back. For each assignment the first
  record with the same SKU and location is decremented by the line quantity;
  afterwards every record at zero (or below) is removed, keeping the order of
  the rest.

CONSISTENCY:
  The allocator admits a line only when a slot holds enough, and it reads the
  same snapshot the mutator writes, so a record going negative (or missing)
  means the two disagree. That is reported as a ConsistencyError, never
  clamped. Decrements are applied to a copy: on error the caller's inventory
  is returned as it was.
*/
package picking

// Apply decrements inv by every assignment and compacts the result.
// inv itself is not modified.
func Apply(inv Inventory, assignments []Assignment) (Inventory, error) {
	work := inv.Clone()

	for _, a := range assignments {
		i := findRecord(work, a.Line.SKU, a.Location)
		if i < 0 {
			return inv, &ConsistencyError{
				OrderID:  a.Line.OrderID,
				SKU:      a.Line.SKU,
				Location: a.Location,
				Reason:   ErrRecordNotFound,
			}
		}

		work[i].Quantity -= a.Line.Quantity
		if work[i].Quantity < 0 {
			return inv, &ConsistencyError{
				OrderID:  a.Line.OrderID,
				SKU:      a.Line.SKU,
				Location: a.Location,
				Quantity: work[i].Quantity,
				Reason:   ErrInconsistentInventory,
			}
		}
	}

	return Compact(work), nil
}

// Compact drops records with no remaining quantity, in place.
func Compact(inv Inventory) Inventory {
	kept := inv[:0]
	for _, r := range inv {
		if r.Quantity > 0 {
			kept = append(kept, r)
		}
	}
	return kept
}

func findRecord(inv Inventory, sku SKU, loc Location) int {
	for i := range inv {
		if inv[i].SKU == sku && inv[i].Location == loc {
			return i
		}
	}
	return -1
}
