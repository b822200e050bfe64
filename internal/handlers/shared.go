package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maison-curio/api/internal/platform/httpx"
	"github.com/maison-curio/api/internal/services"
)

const maxRequestBodySize = 1 << 16

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotificationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("notification_failed", err.Error(), http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

type orderItemPayload struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type orderCustomerPayload struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type orderPayload struct {
	ID             string               `json:"id"`
	OrderNumber    string               `json:"order_number"`
	Status         string               `json:"status"`
	Currency       string               `json:"currency"`
	Subtotal       int64                `json:"subtotal"`
	ShippingCost   int64                `json:"shipping_cost"`
	Tax            int64                `json:"tax"`
	Total          int64                `json:"total"`
	Customer       orderCustomerPayload `json:"customer"`
	Items          []orderItemPayload   `json:"items"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	CarrierName    string               `json:"carrier_name,omitempty"`
	TrackingURL    string               `json:"tracking_url,omitempty"`
	InternalNotes  string               `json:"internal_notes,omitempty"`
	CancelReason   string               `json:"cancel_reason,omitempty"`
	CreatedAt      string               `json:"created_at"`
	UpdatedAt      string               `json:"updated_at,omitempty"`
	PaidAt         string               `json:"paid_at,omitempty"`
	ShippedAt      string               `json:"shipped_at,omitempty"`
	DeliveredAt    string               `json:"delivered_at,omitempty"`
	CanceledAt     string               `json:"canceled_at,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	cancelReason := ""
	if order.CancelReason != nil {
		cancelReason = *order.CancelReason
	}

	return orderPayload{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       string(order.Status),
		Currency:     order.Currency,
		Subtotal:     order.Subtotal,
		ShippingCost: order.ShippingCost,
		Tax:          order.Tax,
		Total:        order.Total,
		Customer: orderCustomerPayload{
			Name:       order.Customer.Name,
			Email:      order.Customer.Email,
			Phone:      order.Customer.Phone,
			Line1:      order.Customer.Line1,
			Line2:      order.Customer.Line2,
			City:       order.Customer.City,
			PostalCode: order.Customer.PostalCode,
			Country:    order.Customer.Country,
		},
		Items:          items,
		TrackingNumber: order.TrackingNumber,
		CarrierName:    order.CarrierName,
		TrackingURL:    order.TrackingURL,
		InternalNotes:  order.InternalNotes,
		CancelReason:   cancelReason,
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
		PaidAt:         formatTimePtr(order.PaidAt),
		ShippedAt:      formatTimePtr(order.ShippedAt),
		DeliveredAt:    formatTimePtr(order.DeliveredAt),
		CanceledAt:     formatTimePtr(order.CanceledAt),
	}
}

// buildPublicOrderPayload omits the staff-only fields from the order view.
// Cancel reasons carry provider failure detail, so they stay internal too.
func buildPublicOrderPayload(order services.Order) orderPayload {
	payload := buildOrderPayload(order)
	payload.InternalNotes = ""
	payload.CancelReason = ""
	return payload
}
