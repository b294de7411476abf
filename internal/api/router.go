package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"coinflip-settlement/internal/pkg/metrics"
)

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler, bets *BetHandler, wallet *WalletHandler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/leaderboard", h.GetLeaderboard)

	r.Post("/bets", bets.CreateBet)
	r.Get("/games/{id}", bets.GetGame)

	r.Route("/players/{player}", func(r chi.Router) {
		r.Get("/stats", h.GetPlayerStats)
		r.Get("/balance", h.GetPlayerBalance)
		r.Get("/rank", h.GetPlayerRank)
		r.Get("/games", bets.GetPlayerGames)
		r.Get("/ledger", wallet.GetPlayerLedger)
		r.Get("/modifier", wallet.GetPlayerModifier)
		r.Post("/deposits", wallet.CreateDeposit)
		r.Post("/discounts", wallet.PurchaseDiscount)
	})

	r.Get("/analytics/daily/{day}", h.GetDailyAnalytics)
	r.Get("/analytics/games/{gameType}/{day}", h.GetGamePerformance)

	return r
}

// requestLogger logs each request and counts it by route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()

		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
