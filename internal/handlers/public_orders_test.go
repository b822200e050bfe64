package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/services"
)

type stubShippingService struct {
	quoteFn     func([]services.ShippingItem, int64, services.Destination, services.SiteSettings) (services.ShippingQuote, error)
	quoteCartFn func(context.Context, services.CartShippingCommand) (services.ShippingQuote, error)
}

func (s *stubShippingService) Quote(items []services.ShippingItem, subtotal int64, destination services.Destination, settings services.SiteSettings) (services.ShippingQuote, error) {
	if s.quoteFn != nil {
		return s.quoteFn(items, subtotal, destination, settings)
	}
	return services.ShippingQuote{}, nil
}

func (s *stubShippingService) QuoteCart(ctx context.Context, cmd services.CartShippingCommand) (services.ShippingQuote, error) {
	if s.quoteCartFn != nil {
		return s.quoteCartFn(ctx, cmd)
	}
	return services.ShippingQuote{}, nil
}

func newPublicRouter(orders services.OrderService, shipping services.ShippingService) chi.Router {
	handler := NewPublicHandlers(orders, shipping)
	router := chi.NewRouter()
	handler.Routes(router)
	return router
}

func TestPublicHandlersTrackOrder(t *testing.T) {
	var gotNumber, gotEmail string
	service := &stubOrderHandlerService{
		trackFn: func(ctx context.Context, orderNumber, email string) (services.Order, error) {
			gotNumber, gotEmail = orderNumber, email
			order := sampleOrder()
			reason := "payment failed: card_declined"
			order.CancelReason = &reason
			return order, nil
		},
	}

	router := newPublicRouter(service, nil)
	body := `{"order_number":"MC-20250501-A1B2C3","email":"JULES@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/orders:track", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotNumber != "MC-20250501-A1B2C3" || gotEmail != "JULES@example.com" {
		t.Fatalf("expected lookup args forwarded, got %q %q", gotNumber, gotEmail)
	}

	var payload orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != string(domain.OrderStatusPaid) {
		t.Fatalf("expected paid status, got %s", payload.Status)
	}
	if payload.InternalNotes != "" {
		t.Fatalf("public payload must not expose internal notes, got %q", payload.InternalNotes)
	}
	if payload.CancelReason != "" {
		t.Fatalf("public payload must not expose the cancel reason, got %q", payload.CancelReason)
	}
}

func TestPublicHandlersTrackOrderNotFound(t *testing.T) {
	service := &stubOrderHandlerService{
		trackFn: func(ctx context.Context, orderNumber, email string) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	router := newPublicRouter(service, nil)
	req := httptest.NewRequest(http.MethodPost, "/orders:track", strings.NewReader(`{"order_number":"MC-X","email":"a@b.c"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestPublicHandlersTrackOrderRequiresFields(t *testing.T) {
	router := newPublicRouter(&stubOrderHandlerService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/orders:track", strings.NewReader(`{"order_number":"MC-X"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPublicHandlersShippingEstimate(t *testing.T) {
	var captured services.CartShippingCommand
	shipping := &stubShippingService{
		quoteCartFn: func(ctx context.Context, cmd services.CartShippingCommand) (services.ShippingQuote, error) {
			captured = cmd
			return services.ShippingQuote{
				Cost:                    5000,
				HasSpecialShippingItems: true,
				Notes:                   []string{"ships in a wooden crate"},
			}, nil
		},
	}

	router := newPublicRouter(nil, shipping)
	body := `{"product_ids":["prod-1","prod-2"],"destination":"international","locale":"fr-FR"}`
	req := httptest.NewRequest(http.MethodPost, "/cart:shipping-estimate", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.ProductIDs) != 2 {
		t.Fatalf("expected product ids forwarded, got %#v", captured.ProductIDs)
	}
	if captured.Destination != domain.DestinationInternational {
		t.Fatalf("expected international destination, got %s", captured.Destination)
	}
	if captured.Locale != "fr-FR" {
		t.Fatalf("expected locale forwarded, got %s", captured.Locale)
	}

	var payload shippingEstimatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !payload.Available {
		t.Fatalf("expected available estimate")
	}
	if payload.Cost != 5000 {
		t.Fatalf("expected cost 5000, got %d", payload.Cost)
	}
	if !payload.HasSpecialShippingItems {
		t.Fatalf("expected special shipping flag")
	}
	if len(payload.Notes) != 1 || payload.Notes[0] != "ships in a wooden crate" {
		t.Fatalf("expected advisory note, got %#v", payload.Notes)
	}
}

func TestPublicHandlersShippingEstimateDegradesWhenUnavailable(t *testing.T) {
	shipping := &stubShippingService{
		quoteCartFn: func(ctx context.Context, cmd services.CartShippingCommand) (services.ShippingQuote, error) {
			return services.ShippingQuote{}, services.ErrShippingUnavailable
		},
	}

	router := newPublicRouter(nil, shipping)
	req := httptest.NewRequest(http.MethodPost, "/cart:shipping-estimate", strings.NewReader(`{"product_ids":["prod-1"]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected degraded status 200, got %d", rr.Code)
	}

	var payload shippingEstimatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Available {
		t.Fatalf("expected unavailable estimate")
	}
}

func TestPublicHandlersShippingEstimateInvalidInput(t *testing.T) {
	shipping := &stubShippingService{
		quoteCartFn: func(ctx context.Context, cmd services.CartShippingCommand) (services.ShippingQuote, error) {
			return services.ShippingQuote{}, services.ErrShippingInvalidInput
		},
	}

	router := newPublicRouter(nil, shipping)
	req := httptest.NewRequest(http.MethodPost, "/cart:shipping-estimate", strings.NewReader(`{"destination":"moon"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
