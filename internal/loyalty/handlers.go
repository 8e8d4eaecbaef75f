package loyalty

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/obs"
)

// Handler exposes loyalty account endpoints.
type Handler struct {
	Svc *Service
}

type redeemPayload struct {
	UserID      string  `json:"userId"`
	Points      int64   `json:"points"`
	OrderID     *string `json:"orderId"`
	Description *string `json:"description"`
}

type grantPayload struct {
	UserID      string  `json:"userId"`
	Points      int64   `json:"points"`
	Description *string `json:"description"`
}

// Balance returns the user's current point balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "userId")))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid user id", nil)
		return
	}
	points, err := h.Svc.Balance(r.Context(), userID)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"userId": userID, "points": points}})
}

// Redeem converts points into a discount amount.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var payload redeemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(payload.UserID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid user id", nil)
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
	redemption, err := h.Svc.Redeem(r.Context(), userID, payload.Points, orderID, payload.Description)
	if obs.LoyaltyRedemptionTotal != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		obs.LoyaltyRedemptionTotal.WithLabelValues(result).Inc()
	}
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":        true,
		"discountAmount": redemption.DiscountAmount,
		"newBalance":     redemption.NewBalance,
	}})
}

// Grant credits points to an account from the admin console.
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var payload grantPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(payload.UserID))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid user id", nil)
		return
	}
	balance, err := h.Svc.Grant(r.Context(), userID, payload.Points, payload.Description)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"userId": userID, "points": balance}})
}

// appError maps loyalty sentinel errors onto the shared failure taxonomy.
func appError(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return common.NewAppError(common.CodeNotFound, "loyalty account not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidPoints):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInsufficientPoints):
		return common.NewAppError(common.CodeInsufficientBalance, err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
