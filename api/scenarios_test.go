package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAndDispatch(t *testing.T, id string) (RunDTO, InventoryDTO) {
	t.Helper()
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPost, "/api/scenarios/load", jsonType, `{"scenario_id": "`+id+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", "", ""))
	require.Equal(t, id, current.ID)

	rr = do(t, router, http.MethodPost, "/api/orders/dispatch", "", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	inv := decode[InventoryDTO](t, do(t, router, http.MethodGet, "/api/inventory", "", ""))
	return decode[RunDTO](t, rr), inv
}

func distances(run RunDTO) []int {
	out := make([]int, len(run.Entries))
	for i, e := range run.Entries {
		out[i] = -1
		if e.Distance != nil {
			out[i] = *e.Distance
		}
	}
	return out
}

func TestScenario_SingleFloor(t *testing.T) {
	run, _ := loadAndDispatch(t, "single-floor")

	// aisle spans: 1..4, 3..3, 2..6
	assert.Equal(t, []int{3, 0, 4}, distances(run))
}

func TestScenario_MultiFloor(t *testing.T) {
	run, _ := loadAndDispatch(t, "multi-floor")

	// F1/A2 -> F2/A5 = 3+10; F3/A1 -> F3/A8 = 7; F1/A2 -> F2/A5 -> F3/A1 = 13+14
	assert.Equal(t, []int{13, 7, 27}, distances(run))
}

func TestScenario_Depletion(t *testing.T) {
	run, inv := loadAndDispatch(t, "depletion")

	// GIVEN 5 lamps: orders 20 and 21 take 4, order 22 needs 2 more
	assert.Equal(t, []int{4, 4, -1, 0}, distances(run))
	assert.True(t, run.Entries[2].Unsatisfiable)

	// THEN the rejected order reserved nothing and bulbs ran out exactly
	assert.Equal(t, []SKUTotalDTO{{SKU: "LAMP", Quantity: 1}}, inv.Totals)
}

func TestScenario_FirstFit(t *testing.T) {
	run, inv := loadAndDispatch(t, "first-fit")

	picks := func(i int) (int, int) {
		p := run.Entries[i].Picks[0]
		return p.Floor, p.Aisle
	}

	// the first DRILL record (F2/A9) is listed first and has enough for order 30
	f, a := picks(0)
	assert.Equal(t, [2]int{2, 9}, [2]int{f, a})
	assert.Equal(t, 17, *run.Entries[0].Distance)

	// it is gone for order 31, which takes F1/A4
	f, a = picks(1)
	assert.Equal(t, [2]int{1, 4}, [2]int{f, a})

	// F1/A4 has 1 left, so order 32 skips it for F1/A1
	f, a = picks(2)
	assert.Equal(t, [2]int{1, 1}, [2]int{f, a})

	assert.Equal(t, []SKUTotalDTO{{SKU: "DRILL", Quantity: 9}, {SKU: "BITS", Quantity: 45}}, inv.Totals)
}

func TestScenario_Unknown(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	rr := do(t, router, http.MethodPost, "/api/scenarios/load", jsonType, `{"scenario_id": "nope"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScenario_AllLoadWithoutError(t *testing.T) {
	router := NewRouter(setupTestHandler(t), RouterOptions{})

	list := decode[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", "", ""))
	require.Len(t, list, len(warehouses))

	for _, s := range list {
		rr := do(t, router, http.MethodPost, "/api/scenarios/load", jsonType, `{"scenario_id": "`+s.ID+`"}`)
		assert.Equal(t, http.StatusOK, rr.Code, s.ID)
	}
}
