package coupon

import (
	"context"
	"encoding/json"
	"errors"
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

// AdminStore is the persistence surface the coupon handlers manage coupons through.
type AdminStore interface {
	Create(ctx context.Context, c Coupon) (Coupon, error)
	Update(ctx context.Context, c Coupon) (Coupon, error)
	List(ctx context.Context, limit, offset int) ([]Coupon, error)
	GetByCode(ctx context.Context, code string) (Coupon, error)
	MarkInactive(ctx context.Context, id uuid.UUID) error
	ListUsages(ctx context.Context, couponID uuid.UUID) ([]Usage, error)
}

// Handler exposes coupon management and resolution endpoints.
type Handler struct {
	Store     AdminStore
	Svc       *Service
	Validator *validator.Validate
	PageSize  int
}

type buyXGetYPayload struct {
	BuyQuantity int    `json:"buyQuantity" validate:"gte=1"`
	GetQuantity int    `json:"getQuantity" validate:"gte=1"`
	GetItemID   string `json:"getItemId" validate:"required,uuid4"`
}

type couponPayload struct {
	Code              string           `json:"code" validate:"required,min=3,max=40"`
	Name              string           `json:"name" validate:"required,max=120"`
	Type              string           `json:"type" validate:"required,oneof=PERCENTAGE FIXED BUY_X_GET_Y FREE_SHIPPING"`
	DiscountValue     *float64         `json:"discountValue" validate:"omitempty,gte=0"`
	MinOrderAmount    *float64         `json:"minOrderAmount" validate:"omitempty,gte=0"`
	MaxDiscountAmount *float64         `json:"maxDiscountAmount" validate:"omitempty,gte=0"`
	BuyXGetY          *buyXGetYPayload `json:"buyXGetY"`
	UsageLimit        *int32           `json:"usageLimit" validate:"omitempty,gte=1"`
	UsageLimitPerUser *int32           `json:"usageLimitPerUser" validate:"omitempty,gte=1"`
	ValidFrom         *time.Time       `json:"validFrom"`
	ValidUntil        *time.Time       `json:"validUntil"`
}

type validatePayload struct {
	Code     string  `json:"code"`
	Subtotal any     `json:"subtotal"`
	UserID   *string `json:"userId"`
}

type applyPayload struct {
	Code        string  `json:"code"`
	Subtotal    any     `json:"subtotal"`
	Items       []Item  `json:"items"`
	UserID      *string `json:"userId"`
	DeliveryFee any     `json:"deliveryFee"`
}

// Create inserts a new coupon rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	created, err := h.Store.Create(r.Context(), payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, common.CodeConflict, "coupon code already exists", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update replaces the rule fields of an existing coupon.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "code is required", nil)
		return
	}
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	payload.Code = code
	updated, err := h.Store.Update(r.Context(), payload)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

// List returns coupons for the admin console, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.pageSize())
	coupons, err := h.Store.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": coupons,
		"meta": common.Pagination{Page: page, PerPage: perPage, TotalItems: len(coupons)},
	})
}

// Deactivate flips a coupon to INACTIVE. Deletion is implemented as this
// one-way transition, never a physical delete.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	c, err := h.Store.GetByCode(r.Context(), code)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	if err := h.Store.MarkInactive(r.Context(), c.ID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"code": c.Code, "status": StatusInactive}})
}

// Usages returns the append-only redemption audit trail of a coupon.
func (h *Handler) Usages(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	c, err := h.Store.GetByCode(r.Context(), code)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	usages, err := h.Store.ListUsages(r.Context(), c.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": usages})
}

// Validate checks a coupon against an order subtotal without computing a
// discount or mutating usage counters.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validatePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	subtotal, err := money.Amount(req.Subtotal)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "subtotal must be a number", nil)
		return
	}
	userID, err := parseOptionalUser(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid user id", nil)
		return
	}
	c, err := h.Svc.Validate(r.Context(), req.Code, subtotal, userID)
	observeResolution("validate", err)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"valid": true, "coupon": c}})
}

// Apply validates a coupon and returns the discount it would grant. Usage is
// never recorded here; the order composer records it once the order persists.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return
	}
	subtotal, err := money.Amount(req.Subtotal)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "subtotal must be a number", nil)
		return
	}
	var deliveryFee float64
	if req.DeliveryFee != nil {
		deliveryFee, err = money.Amount(req.DeliveryFee)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "deliveryFee must be a number", nil)
			return
		}
	}
	userID, err := parseOptionalUser(req.UserID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid user id", nil)
		return
	}
	result, err := h.Svc.Apply(r.Context(), req.Code, subtotal, req.Items, userID, deliveryFee)
	observeResolution("apply", err)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"success":  true,
		"discount": result.Discount,
		"coupon":   result.Coupon,
	}})
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (Coupon, bool) {
	var payload couponPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid payload", nil)
		return Coupon{}, false
	}
	if h.Validator != nil {
		if err := h.Validator.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return Coupon{}, false
		}
	}
	c, err := payload.toModel()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return Coupon{}, false
	}
	return c, true
}

func (p couponPayload) toModel() (Coupon, error) {
	c := Coupon{
		Code:              p.Code,
		Name:              p.Name,
		Type:              Type(p.Type),
		DiscountValue:     p.DiscountValue,
		MinOrderAmount:    p.MinOrderAmount,
		MaxDiscountAmount: p.MaxDiscountAmount,
		UsageLimit:        p.UsageLimit,
		UsageLimitPerUser: p.UsageLimitPerUser,
		ValidFrom:         p.ValidFrom,
		ValidUntil:        p.ValidUntil,
	}
	switch c.Type {
	case TypePercentage, TypeFixed:
		if p.DiscountValue == nil {
			return Coupon{}, errors.New("discountValue is required for this coupon type")
		}
	case TypeBuyXGetY:
		if p.BuyXGetY == nil {
			return Coupon{}, errors.New("buyXGetY rule is required for BUY_X_GET_Y coupons")
		}
	}
	if c.Type != TypePercentage {
		c.MaxDiscountAmount = nil
	}
	if p.BuyXGetY != nil {
		itemID, err := uuid.Parse(p.BuyXGetY.GetItemID)
		if err != nil {
			return Coupon{}, errors.New("buyXGetY.getItemId must be a valid uuid")
		}
		c.BuyXGetY = &BuyXGetY{
			BuyQuantity: p.BuyXGetY.BuyQuantity,
			GetQuantity: p.BuyXGetY.GetQuantity,
			GetItemID:   itemID,
		}
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return Coupon{}, errors.New("validUntil must not precede validFrom")
	}
	return c, nil
}

func (h *Handler) pageSize() int {
	if h.PageSize > 0 {
		return h.PageSize
	}
	return 20
}

func observeResolution(operation string, err error) {
	if obs.CouponResolutionTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	obs.CouponResolutionTotal.WithLabelValues(operation, result).Inc()
}

func parseOptionalUser(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// appError maps coupon sentinel errors onto the shared failure taxonomy.
func appError(err error) error {
	switch {
	case errors.Is(err, ErrCodeRequired):
		return common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError(common.CodeNotFound, "coupon not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNotActive),
		errors.Is(err, ErrNotStarted),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrUsageLimitReached),
		errors.Is(err, ErrPerUserLimitReached):
		return common.NewAppError(common.CodeState, err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrMinOrderNotMet):
		return common.NewAppError(common.CodeThreshold, err.Error(), http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
