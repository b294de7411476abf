package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"coinflip-settlement/internal/model"
)

// Wallet moves and lists a player's funds.
type Wallet interface {
	Deposit(ctx context.Context, player string, amount decimal.Decimal) (*model.PlayerBalance, error)
	GetLedger(ctx context.Context, player string, limit int) ([]*model.LedgerEntry, error)
}

// Discounts sells and reports house-edge discounts.
type Discounts interface {
	Purchase(ctx context.Context, player string, reductionBP, uses int64, duration time.Duration) (*model.HouseEdgeModifier, error)
	ActiveModifier(ctx context.Context, player string) (*model.HouseEdgeModifier, error)
	EffectiveHouseEdge(ctx context.Context, player string) (int64, error)
}

// WalletHandler handles deposits, the audit ledger and discount purchases.
type WalletHandler struct {
	wallet    Wallet
	discounts Discounts
}

// NewWalletHandler creates a new wallet handler.
func NewWalletHandler(wallet Wallet, discounts Discounts) *WalletHandler {
	return &WalletHandler{wallet: wallet, discounts: discounts}
}

// DepositRequest is the body of POST /players/{player}/deposits.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// DiscountRequest is the body of POST /players/{player}/discounts.
type DiscountRequest struct {
	ReductionBP     int64 `json:"reduction_bp"`
	Uses            int64 `json:"uses"`
	DurationSeconds int64 `json:"duration_seconds"`
}

// CreateDeposit credits wager funds.
func (h *WalletHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	bal, err := h.wallet.Deposit(r.Context(), player, req.Amount)
	if err != nil {
		respondCommandError(w, "failed to deposit", err)
		return
	}
	respondJSON(w, http.StatusCreated, bal)
}

// GetPlayerLedger returns a player's audit entries, newest first.
// Query params: limit
func (h *WalletHandler) GetPlayerLedger(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")
	limit := clampLimit(parseIntParam(r, "limit", 50))

	entries, err := h.wallet.GetLedger(r.Context(), player, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load ledger", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// PurchaseDiscount pays reward currency for a house-edge modifier.
func (h *WalletHandler) PurchaseDiscount(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	var req DiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	m, err := h.discounts.Purchase(r.Context(), player, req.ReductionBP, req.Uses,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		respondCommandError(w, "failed to purchase discount", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// GetPlayerModifier returns the active modifier, if any, and the edge the
// player's next game would settle at.
func (h *WalletHandler) GetPlayerModifier(w http.ResponseWriter, r *http.Request) {
	player := chi.URLParam(r, "player")

	m, err := h.discounts.ActiveModifier(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load modifier", err)
		return
	}
	edge, err := h.discounts.EffectiveHouseEdge(r.Context(), player)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load modifier", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"modifier":                m,
		"effective_house_edge_bp": edge,
	})
}
