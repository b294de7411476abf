// Package api serves the read-only HTTP query surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"coinflip-settlement/internal/balance"
	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/modifier"
	"coinflip-settlement/internal/pkg/lock"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/service"
	"coinflip-settlement/internal/settlement"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Rankings serves leaderboard ranks.
type Rankings interface {
	Top(ctx context.Context, by string, limit int) ([]model.LeaderboardEntry, error)
	PlayerRank(ctx context.Context, player string) (model.LeaderboardEntry, bool, error)
}

// Accounts serves per-player balances and stats.
type Accounts interface {
	GetBalance(ctx context.Context, player string) (*model.PlayerBalance, error)
	GetStats(ctx context.Context, player string) (*service.StatsSummary, error)
}

// Analytics serves day-bucket reports.
type Analytics interface {
	Day(ctx context.Context, ts int64) (*service.DayReport, error)
	GamePerformance(ctx context.Context, gameType string, ts int64) (*model.GamePerformance, error)
}

// Handler contains dependencies for HTTP handlers.
type Handler struct {
	db        Pinger
	rankings  Rankings
	accounts  Accounts
	analytics Analytics
}

// NewHandler creates a new handler with dependencies.
func NewHandler(db Pinger, rankings Rankings, accounts Accounts, analytics Analytics) *Handler {
	return &Handler{
		db:        db,
		rankings:  rankings,
		accounts:  accounts,
		analytics: analytics,
	}
}

const maxListLimit = 500

// HealthCheck returns the health status of the service.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// GetLeaderboard returns ranked entries.
// Query params: by (volume|profit), limit
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	by := r.URL.Query().Get("by")
	limit := clampLimit(parseIntParam(r, "limit", 10))

	entries, err := h.rankings.Top(r.Context(), by, limit)
	if err != nil {
		if errors.Is(err, service.ErrUnknownRanking) {
			respondError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load leaderboard", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"by":      orDefault(by, service.RankByVolume),
		"entries": entries,
		"count":   len(entries),
	})
}

// GetPlayerRank returns one player's leaderboard entry.
func (h *Handler) GetPlayerRank(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	e, ok, err := h.rankings.PlayerRank(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load leaderboard", err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "player not ranked", nil)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// GetPlayerStats returns a player's lifetime stats.
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	st, err := h.accounts.GetStats(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load stats", err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// GetPlayerBalance returns a player's balance.
func (h *Handler) GetPlayerBalance(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	bal, err := h.accounts.GetBalance(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load balance", err)
		return
	}
	respondJSON(w, http.StatusOK, bal)
}

// GetDailyAnalytics returns the report for the day bucket containing the
// given unix timestamp.
func (h *Handler) GetDailyAnalytics(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseInt(chi.URLParam(r, "day"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "day must be a unix timestamp", nil)
		return
	}

	report, err := h.analytics.Day(r.Context(), ts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load analytics", err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// GetGamePerformance returns one game type's rollup for the day bucket
// containing the given unix timestamp.
func (h *Handler) GetGamePerformance(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseInt(chi.URLParam(r, "day"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "day must be a unix timestamp", nil)
		return
	}

	perf, err := h.analytics.GamePerformance(r.Context(), chi.URLParam(r, "gameType"), ts)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no games in this bucket", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load analytics", err)
		return
	}
	respondJSON(w, http.StatusOK, perf)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		log.Error().Err(err).Int("status", status).Msg(message)
	}
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// commandStatus maps a service error to the status a caller can act on.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, settlement.ErrInvalidBetAmount),
		errors.Is(err, settlement.ErrUnknownGame),
		errors.Is(err, settlement.ErrPurchaseTooSmall),
		errors.Is(err, service.ErrMissingOutcomeID),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, model.ErrInvalidSide),
		errors.Is(err, modifier.ErrReductionTooLarge),
		errors.Is(err, modifier.ErrInvalidReduction),
		errors.Is(err, modifier.ErrDurationTooLong),
		errors.Is(err, modifier.ErrInvalidDuration),
		errors.Is(err, modifier.ErrInvalidUses):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, balance.ErrInsufficientFunds),
		errors.Is(err, settlement.ErrInsufficientRewardBalance),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrGamePaused),
		errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondCommandError reports rejected input with the error text and logs
// only server-side failures.
func respondCommandError(w http.ResponseWriter, message string, err error) {
	status := commandStatus(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, message, err)
		return
	}
	respondError(w, status, err.Error(), nil)
}
