package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maison-curio/api/internal/payments"
	"github.com/maison-curio/api/internal/platform/httpx"
	"github.com/maison-curio/api/internal/services"
)

// Stripe caps event payloads well below this, so anything larger is junk.
const maxWebhookBodySize = 1 << 20

// WebhookHandlers receives provider callbacks, verifies them, and hands the
// normalised events to the payment event service.
type WebhookHandlers struct {
	verifier payments.EventVerifier
	events   services.PaymentEventService
}

// NewWebhookHandlers constructs the webhook handlers.
func NewWebhookHandlers(verifier payments.EventVerifier, events services.PaymentEventService) *WebhookHandlers {
	return &WebhookHandlers{verifier: verifier, events: events}
}

// Routes registers the webhook endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *WebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.events == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "webhook processing unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read payload", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.VerifyAndParse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook verification failed", http.StatusBadRequest))
		return
	}

	switch event.Type {
	case payments.EventTypeCheckoutCompleted:
		if event.CheckoutCompleted == nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed checkout event", http.StatusBadRequest))
			return
		}
		if _, err := h.events.HandleCheckoutCompleted(ctx, *event.CheckoutCompleted); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process checkout event", http.StatusInternalServerError))
			return
		}
	case payments.EventTypePaymentSucceeded:
		if event.PaymentSucceeded == nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed payment event", http.StatusBadRequest))
			return
		}
		if err := h.events.HandlePaymentSucceeded(ctx, *event.PaymentSucceeded); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process payment event", http.StatusInternalServerError))
			return
		}
	case payments.EventTypePaymentFailed:
		if event.PaymentFailed == nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed payment event", http.StatusBadRequest))
			return
		}
		if err := h.events.HandlePaymentFailed(ctx, *event.PaymentFailed); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("webhook_error", "failed to process payment event", http.StatusInternalServerError))
			return
		}
	default:
		// Verified but unhandled event types are acknowledged so the
		// provider stops retrying them.
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"received": "true"})
}
