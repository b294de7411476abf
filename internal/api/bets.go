package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
	"coinflip-settlement/internal/repository"
	"coinflip-settlement/internal/service"
)

// Games places bets and reads them back.
type Games interface {
	PlaceBet(ctx context.Context, req service.PlaceBetRequest) (*model.PendingGame, error)
	GetPending(ctx context.Context, gameID string) (*model.PendingGame, error)
	GetSettled(ctx context.Context, gameID string) (*model.SettledGame, error)
	RecentGames(ctx context.Context, player string, limit int) ([]*model.SettledGame, error)
}

// BetHandler handles bet placement and game lookups.
type BetHandler struct {
	games Games
}

// NewBetHandler creates a new bet handler.
func NewBetHandler(games Games) *BetHandler {
	return &BetHandler{games: games}
}

// CreateBetRequest is the body of POST /bets.
type CreateBetRequest struct {
	Player          string          `json:"player"`
	GameType        string          `json:"game_type,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	ChosenSide      *model.Side     `json:"chosen_side"`
	RandomOutcomeID string          `json:"random_outcome_id"`
	Block           uint64          `json:"block"`
}

// CreateBet locks the stake and records a pending game.
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Player) == "" || req.ChosenSide == nil {
		respondError(w, http.StatusBadRequest, "player and chosen_side are required", nil)
		return
	}

	pending, err := h.games.PlaceBet(r.Context(), service.PlaceBetRequest{
		Player:          req.Player,
		GameType:        req.GameType,
		Amount:          req.Amount,
		ChosenSide:      *req.ChosenSide,
		RandomOutcomeID: req.RandomOutcomeID,
		Block:           req.Block,
	})
	if err != nil {
		respondCommandError(w, "failed to place bet", err)
		return
	}
	respondJSON(w, http.StatusCreated, pending)
}

// GetGame returns a settled game, or the pending record while it waits for
// randomness or after it expired.
func (h *BetHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	settled, err := h.games.GetSettled(r.Context(), id)
	if err == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": model.GameStatusSettled,
			"game":   settled,
		})
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "failed to load game", err)
		return
	}

	pending, err := h.games.GetPending(r.Context(), id)
	if err != nil {
		respondCommandError(w, "failed to load game", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": pending.Status,
		"game":   pending,
	})
}

// GetPlayerGames returns a player's most recent settled games.
// Query params: limit
func (h *BetHandler) GetPlayerGames(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	limit := clampLimit(parseIntParam(r, "limit", 20))

	games, err := h.games.RecentGames(r.Context(), player, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load games", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}
