// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_ticks_total", Help: "Underlying ticks ingested"},
		[]string{"symbol"},
	)
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_triggers_total", Help: "Gap breaches that produced a trigger"},
		[]string{"side"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_risk_rejections_total", Help: "Triggers rejected by the multiplier ceiling"},
		[]string{"side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_orders_total", Help: "Orders submitted by outcome"},
		[]string{"side", "status"},
	)
	ResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "survivor_resets_total", Help: "Anchor resets after favourable retracement"},
		[]string{"side"},
	)
	Anchor = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "survivor_anchor", Help: "Current reference anchor per instance and side"},
		[]string{"instance", "side"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, TriggersTotal, RiskRejectionsTotal, OrdersTotal, ResetsTotal, Anchor)
}

// Route mounts an extra handler next to /metrics.
type Route struct {
	Pattern string
	Handler http.Handler
}

// Serve exposes /metrics plus any extra routes on addr in the background.
func Serve(addr string, routes ...Route) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	for _, r := range routes {
		mux.Handle(r.Pattern, r.Handler)
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
