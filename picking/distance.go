package picking

import "sort"

// FloorChangePenalty is added for every adjacent pair of visited locations
// on different floors.
const FloorChangePenalty = 10

// Distance returns the travel cost of visiting locs.
//
// Locations are sorted by (floor, aisle) and the cost of each adjacent pair
// is the absolute aisle difference, plus FloorChangePenalty when the floors
// differ. Repeated locations are not collapsed. The input is not modified.
func Distance(locs []Location) int {
	if len(locs) < 2 {
		return 0
	}

	sorted := make([]Location, len(locs))
	copy(sorted, locs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	total := 0
	for i := 0; i < len(sorted)-1; i++ {
		total += stepCost(sorted[i], sorted[i+1])
	}
	return total
}

func stepCost(a, b Location) int {
	d := a.Aisle - b.Aisle
	if d < 0 {
		d = -d
	}
	if a.Floor != b.Floor {
		d += FloorChangePenalty
	}
	return d
}
