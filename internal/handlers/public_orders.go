package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-curio/api/internal/platform/httpx"
	"github.com/maison-curio/api/internal/services"
)

// PublicHandlers serves the unauthenticated storefront endpoints.
type PublicHandlers struct {
	orders   services.OrderService
	shipping services.ShippingService
}

// NewPublicHandlers constructs the public handlers.
func NewPublicHandlers(orders services.OrderService, shipping services.ShippingService) *PublicHandlers {
	return &PublicHandlers{orders: orders, shipping: shipping}
}

// Routes registers the public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders:track", h.trackOrder)
	r.Post("/cart:shipping-estimate", h.shippingEstimate)
}

type trackOrderRequest struct {
	OrderNumber string `json:"order_number"`
	Email       string `json:"email"`
}

func (h *PublicHandlers) trackOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req trackOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderNumber) == "" || strings.TrimSpace(req.Email) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_number and email are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TrackOrder(ctx, req.OrderNumber, req.Email)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPublicOrderPayload(order))
}

type shippingEstimateRequest struct {
	ProductIDs  []string `json:"product_ids"`
	Destination string   `json:"destination"`
	Locale      string   `json:"locale"`
}

type shippingEstimatePayload struct {
	Available               bool     `json:"available"`
	Cost                    int64    `json:"cost,omitempty"`
	FreeShipping            bool     `json:"free_shipping,omitempty"`
	HasSpecialShippingItems bool     `json:"has_special_shipping_items,omitempty"`
	Notes                   []string `json:"notes,omitempty"`
}

func (h *PublicHandlers) shippingEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		writeJSONResponse(w, http.StatusOK, shippingEstimatePayload{Available: false})
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req shippingEstimateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	quote, err := h.shipping.QuoteCart(ctx, services.CartShippingCommand{
		ProductIDs:  req.ProductIDs,
		Destination: services.Destination(strings.TrimSpace(req.Destination)),
		Locale:      req.Locale,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrShippingInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrShippingUnavailable), errors.Is(err, services.ErrShippingSettings):
			// Checkout still works without an estimate, so degrade instead of failing.
			writeJSONResponse(w, http.StatusOK, shippingEstimatePayload{Available: false})
		default:
			httpx.WriteError(ctx, w, httpx.NewError("shipping_error", "failed to compute shipping estimate", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, shippingEstimatePayload{
		Available:               true,
		Cost:                    quote.Cost,
		FreeShipping:            quote.FreeShipping,
		HasSpecialShippingItems: quote.HasSpecialShippingItems,
		Notes:                   quote.Notes,
	})
}
