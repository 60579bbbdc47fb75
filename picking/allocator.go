/*
allocator.go - First-fit greedy assignment of order lines to locations

ALGORITHM (per order line, in line order):
  1. SKU not indexed           -> order fails
  2. scan the SKU's slots in index order, take the first one with
     Available >= requested   (first-fit, not best-fit, not distance-aware)
  3. found                     -> reserve in the index, record the location
  4. nothing qualifies         -> order fails

  A failure discards every assignment made for the order so far. Reservations
  only live in the per-order index, so the inventory is never touched here.

  Distance is computed once, over the full assignment, and only on success.
*/
package picking

// AllocationResult is the outcome of allocating one order.
// On failure Assignments is nil and Reason explains the first bad line.
type AllocationResult struct {
	OrderID     OrderID
	Assignments []Assignment
	Distance    int
	Satisfiable bool
	Reason      error
}

// Allocator chooses a location for every line of an order.
type Allocator interface {
	Allocate(order Order, idx *SKUIndex) AllocationResult
}

// GreedyAllocator implements first-fit allocation.
type GreedyAllocator struct{}

// Allocate assigns every line of order or none. It reserves against idx.
func (GreedyAllocator) Allocate(order Order, idx *SKUIndex) AllocationResult {
	assignments := make([]Assignment, 0, len(order.Lines))

	for _, line := range order.Lines {
		if !idx.Has(line.SKU) {
			return failed(order.ID, line, ErrUnknownSKU)
		}

		k, ok := idx.firstFit(line.SKU, line.Quantity)
		if !ok {
			return failed(order.ID, line, ErrInsufficientStock)
		}

		assignments = append(assignments, Assignment{
			Line:     line,
			Location: idx.reserve(line.SKU, k, line.Quantity),
		})
	}

	return AllocationResult{
		OrderID:     order.ID,
		Assignments: assignments,
		Distance:    Distance(Locations(assignments)),
		Satisfiable: true,
	}
}

func failed(id OrderID, line OrderLine, reason error) AllocationResult {
	return AllocationResult{
		OrderID: id,
		Reason: &UnsatisfiableError{
			OrderID:   id,
			SKU:       line.SKU,
			Requested: line.Quantity,
			Reason:    reason,
		},
	}
}
