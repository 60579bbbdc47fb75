/*
index.go - SKU to candidate locations, rebuilt per order

PURPOSE:
  The allocator needs, for each SKU, the locations that hold it and how much
  is still available there. The index is built from the current inventory at
  the start of every order, reserved against while that order is allocated,
  and then thrown away.

ORDERING:
  Slots for a SKU appear in the order their records appear in the inventory.
  First-fit correctness depends on this, so the index is insertion-ordered
  (a slice of groups plus a position map) rather than a bare map.

  Records are never merged, even when two share a location.
*/
package picking

// Slot is one candidate location for a SKU and the quantity still free there.
type Slot struct {
	Location  Location
	Available int
}

type skuGroup struct {
	sku   SKU
	slots []Slot
}

// SKUIndex maps a SKU to its ordered candidate slots.
// It is scratch state owned by one order's allocation.
type SKUIndex struct {
	groups []skuGroup
	pos    map[SKU]int
}

// BuildIndex groups the inventory by SKU in first-encounter order.
func BuildIndex(inv Inventory) *SKUIndex {
	idx := &SKUIndex{pos: make(map[SKU]int)}
	for _, r := range inv {
		i, ok := idx.pos[r.SKU]
		if !ok {
			i = len(idx.groups)
			idx.pos[r.SKU] = i
			idx.groups = append(idx.groups, skuGroup{sku: r.SKU})
		}
		idx.groups[i].slots = append(idx.groups[i].slots, Slot{
			Location:  r.Location,
			Available: r.Quantity,
		})
	}
	return idx
}

// EntriesFor returns the slots for sku in index order, or nil if the SKU
// has no records. The returned slice is a copy.
func (idx *SKUIndex) EntriesFor(sku SKU) []Slot {
	i, ok := idx.pos[sku]
	if !ok {
		return nil
	}
	out := make([]Slot, len(idx.groups[i].slots))
	copy(out, idx.groups[i].slots)
	return out
}

// Has reports whether sku has at least one record.
func (idx *SKUIndex) Has(sku SKU) bool {
	_, ok := idx.pos[sku]
	return ok
}

// SKUs returns indexed SKUs in first-seen order.
func (idx *SKUIndex) SKUs() []SKU {
	out := make([]SKU, len(idx.groups))
	for i, g := range idx.groups {
		out[i] = g.sku
	}
	return out
}

// Len returns the number of distinct SKUs.
func (idx *SKUIndex) Len() int {
	return len(idx.groups)
}

// firstFit returns the position of the first slot for sku holding at least qty.
func (idx *SKUIndex) firstFit(sku SKU, qty int) (int, bool) {
	g := idx.groups[idx.pos[sku]]
	for k, s := range g.slots {
		if s.Available >= qty {
			return k, true
		}
	}
	return 0, false
}

// reserve takes qty from slot k of sku and returns its location.
func (idx *SKUIndex) reserve(sku SKU, k, qty int) Location {
	s := &idx.groups[idx.pos[sku]].slots[k]
	s.Available -= qty
	return s.Location
}
