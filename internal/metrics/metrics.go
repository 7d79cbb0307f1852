package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedBarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "feed_bars_total", Help: "Bars delivered by market data feeds"},
		[]string{"provider", "symbol"},
	)
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Closed bars evaluated by the strategy"},
		[]string{"symbol"},
	)
	BreakoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "breakouts_total", Help: "Breakout signals emitted"},
		[]string{"symbol", "direction"},
	)
	RetestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "retests_total", Help: "Retest signals emitted"},
		[]string{"symbol", "direction"},
	)
	NeutralResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neutral_resets_total", Help: "Directions reset to neutral after a quiet spell"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	TrendScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "trend_score", Help: "Latest trend score"},
		[]string{"symbol"},
	)
	Equity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "equity", Help: "Paper account equity marked at the last close"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(FeedBarsTotal, BarsTotal, BreakoutsTotal, RetestsTotal, NeutralResetsTotal, OrdersTotal, TrendScore, Equity)
}

// Serve exposes /metrics on addr in the background. Close the returned server to stop it.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
