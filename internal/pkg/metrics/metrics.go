// Package metrics holds the Prometheus collectors for the settlement service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BetsPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_bets_placed_total",
			Help: "Total bets accepted and locked",
		},
		[]string{"game_type"},
	)

	GamesSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_games_settled_total",
			Help: "Total games settled, by result",
		},
		[]string{"game_type", "result"},
	)

	GamesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coinflip_games_expired_total",
			Help: "Total pending games refunded after the randomness never arrived",
		},
	)

	DiscountsPurchased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coinflip_discounts_purchased_total",
			Help: "Total house edge discounts purchased",
		},
	)

	SettlementErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_settlement_errors_total",
			Help: "Total failed operations, by operation",
		},
		[]string{"operation"},
	)

	FulfillmentSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coinflip_fulfillment_seconds",
			Help:    "Time between placing a bet and its randomness arriving",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinflip_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			BetsPlaced,
			GamesSettled,
			GamesExpired,
			DiscountsPurchased,
			SettlementErrors,
			FulfillmentSeconds,
			HTTPRequests,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Result labels a settled game for GamesSettled.
func Result(playerWon bool) string {
	if playerWon {
		return "won"
	}
	return "lost"
}
