package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-resto/internal/common"
	"github.com/noah-isme/backend-resto/internal/coupon"
	"github.com/noah-isme/backend-resto/internal/giftcard"
	"github.com/noah-isme/backend-resto/internal/loyalty"
	"github.com/noah-isme/backend-resto/internal/money"
	"github.com/noah-isme/backend-resto/internal/obs"
	"github.com/noah-isme/backend-resto/internal/pricing"
)

// Handler exposes the order pricing endpoints.
type Handler struct {
	Composer  *Composer
	Validator *validator.Validate
}

type giftCardPayload struct {
	Code   string  `json:"code" validate:"required"`
	PIN    *string `json:"pin"`
	Amount any     `json:"amount" validate:"required"`
}

type pricePayload struct {
	Subtotal        any              `json:"subtotal" validate:"required"`
	FulfillmentType string           `json:"fulfillmentType" validate:"required,oneof=DELIVERY PICKUP"`
	Tip             any              `json:"tip"`
	DeliveryFee     any              `json:"deliveryFee"`
	UserID          *string          `json:"userId"`
	OrderID         *string          `json:"orderId"`
	CouponCode      *string          `json:"couponCode"`
	Items           []coupon.Item    `json:"items"`
	GiftCard        *giftCardPayload `json:"giftCard"`
	LoyaltyPoints   *int64           `json:"loyaltyPoints"`
}

// Quote prices an order without mutating any ledger.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	start := time.Now()
	breakdown, err := h.Composer.Quote(r.Context(), in)
	observeComposition("quote", start, err)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

// Price resolves and commits every discount instrument, returning the
// authoritative pricing snapshot for the order.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	start := time.Now()
	breakdown, err := h.Composer.Price(r.Context(), in)
	observeComposition("price", start, err)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

func observeComposition(operation string, start time.Time, err error) {
	result := "success"
	instrument := "none"
	if err != nil {
		result = "error"
		var instErr *InstrumentError
		if errors.As(err, &instErr) {
			instrument = string(instErr.Instrument)
		}
	}
	if obs.OrderCompositionTotal != nil {
		obs.OrderCompositionTotal.WithLabelValues(operation, result, instrument).Inc()
	}
	if obs.OrderCompositionLatency != nil {
		obs.OrderCompositionLatency.WithLabelValues(operation).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (h *Handler) decodeInput(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var payload pricePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return Input{}, false
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return Input{}, false
		}
	}
	in, err := payload.toInput()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return Input{}, false
	}
	return in, true
}

func (p pricePayload) toInput() (Input, error) {
	subtotal, err := money.Amount(p.Subtotal)
	if err != nil || subtotal < 0 {
		return Input{}, errors.New("subtotal must be a non-negative number")
	}
	in := Input{
		Subtotal:    subtotal,
		Fulfillment: pricing.Fulfillment(p.FulfillmentType),
		CouponCode:  p.CouponCode,
		Items:       p.Items,
	}
	if p.Tip != nil {
		tip, err := money.Amount(p.Tip)
		if err != nil || tip < 0 {
			return Input{}, errors.New("tip must be a non-negative number")
		}
		in.Tip = tip
	}
	if p.DeliveryFee != nil {
		fee, err := money.Amount(p.DeliveryFee)
		if err != nil || fee < 0 {
			return Input{}, errors.New("deliveryFee must be a non-negative number")
		}
		in.CustomDeliveryFee = &fee
	}
	if in.UserID, err = parseOptionalID(p.UserID, "userId"); err != nil {
		return Input{}, err
	}
	if in.OrderID, err = parseOptionalID(p.OrderID, "orderId"); err != nil {
		return Input{}, err
	}
	if p.GiftCard != nil {
		amount, err := money.Amount(p.GiftCard.Amount)
		if err != nil || amount <= 0 {
			return Input{}, errors.New("giftCard.amount must be a positive number")
		}
		in.GiftCard = &GiftCardInput{Code: p.GiftCard.Code, PIN: p.GiftCard.PIN, Amount: amount}
	}
	in.LoyaltyPoints = p.LoyaltyPoints
	return in, nil
}

func parseOptionalID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, errors.New(field + " must be a valid uuid")
	}
	return &id, nil
}

// appError maps composition failures onto the shared taxonomy, naming the
// failing instrument in the error details.
func appError(err error) error {
	var instErr *InstrumentError
	if !errors.As(err, &instErr) {
		return err
	}
	app := classify(instErr.Err)
	if app == nil {
		return err
	}
	app.Details = map[string]any{"instrument": string(instErr.Instrument)}
	return app
}

func classify(err error) *common.AppError {
	switch {
	case errors.Is(err, coupon.ErrCodeRequired):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, coupon.ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "coupon not found", http.StatusNotFound, err)
	case errors.Is(err, coupon.ErrNotActive),
		errors.Is(err, coupon.ErrNotStarted),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrPerUserLimitReached):
		return common.NewAppError(common.CodeState, err.Error(), http.StatusConflict, err)
	case errors.Is(err, coupon.ErrMinOrderNotMet):
		return common.NewAppError(common.CodeThreshold, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, giftcard.ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "gift card not found", http.StatusNotFound, err)
	case errors.Is(err, giftcard.ErrPINMismatch):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, giftcard.ErrDisabled),
		errors.Is(err, giftcard.ErrExpired),
		errors.Is(err, giftcard.ErrDepleted):
		return common.NewAppError(common.CodeState, err.Error(), http.StatusConflict, err)
	case errors.Is(err, giftcard.ErrInsufficientBalance):
		return common.NewAppError(common.CodeInsufficientBalance, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, giftcard.ErrInvalidAmount):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, loyalty.ErrAccountNotFound):
		return common.NewAppError(common.CodeNotFound, "loyalty account not found", http.StatusNotFound, err)
	case errors.Is(err, loyalty.ErrInsufficientPoints):
		return common.NewAppError(common.CodeInsufficientBalance, err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, loyalty.ErrInvalidPoints):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	default:
		return nil
	}
}
