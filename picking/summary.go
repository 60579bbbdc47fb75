package picking

import (
	"github.com/shopspring/decimal"
)

// Summary aggregates the outcome of a run.
type Summary struct {
	Orders        int
	Committed     int
	Rejected      int
	Flagged       int
	UnitsPicked   int
	TotalDistance int

	// FillRate is Committed / Orders, zero for an empty run.
	FillRate decimal.Decimal
	// MeanDistance is TotalDistance / Committed, zero when nothing committed.
	MeanDistance decimal.Decimal
}

// Summarize computes a Summary from report entries.
func Summarize(entries []ReportEntry) Summary {
	s := Summary{Orders: len(entries)}
	for _, e := range entries {
		switch e.State {
		case StateCommitted:
			s.Committed++
			s.TotalDistance += e.Distance
			for _, a := range e.Assignments {
				s.UnitsPicked += a.Line.Quantity
			}
		case StateFlagged:
			s.Flagged++
		default:
			s.Rejected++
		}
	}

	s.FillRate = ratio(s.Committed, s.Orders)
	s.MeanDistance = ratio(s.TotalDistance, s.Committed)
	return s
}

func ratio(num, den int) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(num)).DivRound(decimal.NewFromInt(int64(den)), 4)
}
