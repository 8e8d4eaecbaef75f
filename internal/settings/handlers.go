package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-resto/internal/common"
)

// Handler exposes the admin settings endpoints.
type Handler struct {
	Provider  *Provider
	Validator *validator.Validate
}

type updatePayload struct {
	TaxRate            *float64 `json:"taxRate" validate:"omitempty,gte=0,lte=1"`
	MinOrderAmount     *float64 `json:"minOrderAmount" validate:"omitempty,gte=0"`
	ClearMinOrder      bool     `json:"clearMinOrder"`
	DefaultDeliveryFee *float64 `json:"defaultDeliveryFee" validate:"omitempty,gte=0"`
}

// Get returns the current restaurant settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Provider.Get(r.Context())
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

// Update changes the provided fields and returns the new settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var payload updatePayload
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
	s, err := h.Provider.Update(r.Context(), UpdateParams{
		TaxRate:            payload.TaxRate,
		MinOrderAmount:     payload.MinOrderAmount,
		ClearMinOrder:      payload.ClearMinOrder,
		DefaultDeliveryFee: payload.DefaultDeliveryFee,
	})
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s})
}

func appError(err error) error {
	if errors.Is(err, ErrNotConfigured) {
		return common.NewAppError(common.CodeNotFound, err.Error(), http.StatusNotFound, err)
	}
	return err
}
