package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-curio/api/internal/platform/auth"
	"github.com/maison-curio/api/internal/platform/httpx"
	"github.com/maison-curio/api/internal/services"
)

// AdminOrderHandlers exposes the operator order console endpoints.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders}
}

// Routes registers admin order endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff))
	}
	r.Route("/orders", func(rt chi.Router) {
		rt.Get("/{orderID}", h.getOrder)
		rt.Put("/{orderID}/status", h.updateStatus)
		rt.Put("/{orderID}/notes", h.updateNotes)
		rt.Post("/{orderID}:resend-notification", h.resendNotification)
	})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type trackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
	CarrierName    string `json:"carrier_name"`
	TrackingURL    string `json:"tracking_url"`
}

func (t *trackingRequest) toUpdate() *services.TrackingUpdate {
	if t == nil {
		return nil
	}
	if strings.TrimSpace(t.TrackingNumber) == "" && strings.TrimSpace(t.CarrierName) == "" && strings.TrimSpace(t.TrackingURL) == "" {
		return nil
	}
	return &services.TrackingUpdate{
		TrackingNumber: strings.TrimSpace(t.TrackingNumber),
		CarrierName:    strings.TrimSpace(t.CarrierName),
		TrackingURL:    strings.TrimSpace(t.TrackingURL),
	}
}

type updateStatusRequest struct {
	Status         string           `json:"status"`
	Tracking       *trackingRequest `json:"tracking"`
	NotifyCustomer bool             `json:"notify_customer"`
	Reason         string           `json:"reason"`
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		TargetStatus:   services.OrderStatus(strings.TrimSpace(req.Status)),
		Tracking:       req.Tracking.toUpdate(),
		NotifyCustomer: req.NotifyCustomer,
		Reason:         req.Reason,
		ActorID:        identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type updateNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *AdminOrderHandlers) updateNotes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateNotesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateInternalNotes(ctx, services.UpdateInternalNotesCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Notes:   req.Notes,
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type resendNotificationRequest struct {
	Tracking *trackingRequest `json:"tracking"`
	Persist  bool             `json:"persist"`
}

func (h *AdminOrderHandlers) resendNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req resendNotificationRequest
	if body, err := readLimitedBody(r, maxRequestBodySize); err == nil {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.ResendShipmentNotice(ctx, services.ResendShipmentNoticeCommand{
		OrderID:  chi.URLParam(r, "orderID"),
		Tracking: req.Tracking.toUpdate(),
		Persist:  req.Persist,
		ActorID:  identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
