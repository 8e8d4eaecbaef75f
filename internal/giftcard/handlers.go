package giftcard

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/money"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// AdminStore is the persistence surface the admin endpoints manage cards through.
type AdminStore interface {
	Create(ctx context.Context, card Card) (Card, error)
	GetByCode(ctx context.Context, code string) (Card, error)
	ListTransactions(ctx context.Context, cardID uuid.UUID) ([]Transaction, error)
}

// Handler exposes gift card endpoints.
type Handler struct {
	Store     AdminStore
	Svc       *Service
	Validator *validator.Validate
}

type createPayload struct {
	Code      string     `json:"code" validate:"omitempty,min=8,max=40"`
	PIN       *string    `json:"pin" validate:"omitempty,len=4,numeric"`
	Balance   any        `json:"balance" validate:"required"`
	Currency  string     `json:"currency" validate:"omitempty,len=3"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type redeemPayload struct {
	Code        string  `json:"code"`
	PIN         *string `json:"pin"`
	Amount      any     `json:"amount"`
	OrderID     *string `json:"orderId"`
	Description *string `json:"description"`
}

// Create issues a new gift card. When no code is supplied one is generated.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return
		}
	}
	balance, err := money.Amount(payload.Balance)
	if err != nil || balance <= 0 {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "balance must be a positive number", nil)
		return
	}
	code := payload.Code
	if strings.TrimSpace(code) == "" {
		code = generateCode()
	}
	card, err := h.Store.Create(r.Context(), Card{
		Code:            code,
		PIN:             payload.PIN,
		OriginalBalance: money.Round2(balance),
		Balance:         money.Round2(balance),
		Currency:        strings.ToUpper(payload.Currency),
		ExpiresAt:       payload.ExpiresAt,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, common.CodeConflict, "gift card code already exists", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": card})
}

// Balance is the public, PIN-free balance check. Rate limited at the router.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	balance, err := h.Svc.CheckBalance(r.Context(), code)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"balance": balance}})
}

// Redeem debits the card against an order.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var payload redeemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	amount, err := money.Amount(payload.Amount)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "amount must be a number", nil)
		return
	}
	var orderID *uuid.UUID
	if payload.OrderID != nil && strings.TrimSpace(*payload.OrderID) != "" {
		parsed, err := uuid.Parse(strings.TrimSpace(*payload.OrderID))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
			return
		}
		orderID = &parsed
	}
	txn, err := h.Svc.Redeem(r.Context(), payload.Code, payload.PIN, amount, orderID, payload.Description)
	if obs.GiftCardRedemptionTotal != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		obs.GiftCardRedemptionTotal.WithLabelValues(result).Inc()
	}
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":    true,
		"newBalance": txn.Balance,
	}})
}

// Transactions returns the immutable ledger of a card for the admin console.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	card, err := h.Store.GetByCode(r.Context(), code)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	txns, err := h.Store.ListTransactions(r.Context(), card.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": txns})
}

func generateCode() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("GC-%X", buf)
}

// appError maps gift card sentinel errors onto the shared failure taxonomy.
func appError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "gift card not found", http.StatusNotFound, err)
	case errors.Is(err, ErrPINMismatch), errors.Is(err, ErrInvalidAmount):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrDisabled), errors.Is(err, ErrExpired), errors.Is(err, ErrDepleted):
		return common.NewAppError(common.CodeState, err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrInsufficientBalance):
		return common.NewAppError(common.CodeInsufficientBalance, err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
