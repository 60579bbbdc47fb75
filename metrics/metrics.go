// Package metrics exposes planning counters to Prometheus.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warp/pick-engine/picking"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// OrdersTotal counts finished orders by terminal state
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pick_orders_total", Help: "Orders processed by terminal state."},
		[]string{"state"},
	)
	// OrderDistance records the route cost of committed orders
	OrderDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "pick_order_distance", Help: "Route distance of committed orders.", Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200}},
	)
	// UnitsPicked counts units decremented from inventory
	UnitsPicked = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pick_units_picked_total", Help: "Units committed out of inventory."},
	)
	// ConsistencyErrors counts commits refused because inventory disagreed with the allocation
	ConsistencyErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pick_consistency_errors_total", Help: "Commits refused by the inventory mutator."},
	)
	// RunsTotal counts stored runs
	RunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pick_runs_total", Help: "Planning runs committed."},
	)
	// InventoryRecords is the number of records in the current inventory
	InventoryRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "pick_inventory_records", Help: "Records in the current inventory."},
	)
	// HTTPRequests counts requests by method, route and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call twice.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(OrdersTotal)
		Registry.MustRegister(OrderDistance)
		Registry.MustRegister(UnitsPicked)
		Registry.MustRegister(ConsistencyErrors)
		Registry.MustRegister(RunsTotal)
		Registry.MustRegister(InventoryRecords)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Observer feeds finished orders into the counters.
type Observer struct{}

func (Observer) OrderFinished(e picking.ReportEntry) {
	OrdersTotal.WithLabelValues(string(e.State)).Inc()
	switch e.State {
	case picking.StateCommitted:
		OrderDistance.Observe(float64(e.Distance))
		units := 0
		for _, a := range e.Assignments {
			units += a.Line.Quantity
		}
		UnitsPicked.Add(float64(units))
	case picking.StateFlagged:
		ConsistencyErrors.Inc()
	}
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
