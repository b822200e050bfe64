package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeEventVerifier authenticates Stripe webhook payloads with the endpoint
// signing secret and maps them onto the engine's event types.
type StripeEventVerifier struct {
	secret string
}

// NewStripeEventVerifier constructs a verifier for the given signing secret.
func NewStripeEventVerifier(secret string) (*StripeEventVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe: webhook signing secret is required")
	}
	return &StripeEventVerifier{secret: secret}, nil
}

// VerifyAndParse checks the signature and normalises the event. Signature
// failures surface as errors; unhandled event types come back as
// EventTypeIgnored so the endpoint can acknowledge them.
func (v *StripeEventVerifier) VerifyAndParse(payload []byte, signature string) (Event, error) {
	if v == nil {
		return Event{}, errors.New("stripe: verifier is nil")
	}

	stripeEvent, err := webhook.ConstructEvent(payload, signature, v.secret)
	if err != nil {
		return Event{}, fmt.Errorf("stripe: verify webhook signature: %w", err)
	}

	event := Event{
		ID:                stripeEvent.ID,
		ProviderEventType: string(stripeEvent.Type),
	}

	switch stripeEvent.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &session); err != nil {
			return Event{}, fmt.Errorf("stripe: decode checkout session event: %w", err)
		}
		event.Type = EventTypeCheckoutCompleted
		event.CheckoutCompleted = &CheckoutCompletedEvent{
			SessionID:       session.ID,
			PaymentIntentID: paymentIntentID(session.PaymentIntent),
		}
	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return Event{}, fmt.Errorf("stripe: decode payment intent event: %w", err)
		}
		event.Type = EventTypePaymentSucceeded
		event.PaymentSucceeded = &PaymentSucceededEvent{PaymentIntentID: intent.ID}
	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &intent); err != nil {
			return Event{}, fmt.Errorf("stripe: decode payment intent event: %w", err)
		}
		event.Type = EventTypePaymentFailed
		event.PaymentFailed = &PaymentFailedEvent{
			PaymentIntentID: intent.ID,
			Reason:          paymentFailureReason(&intent),
		}
	default:
		event.Type = EventTypeIgnored
	}

	return event, nil
}

func paymentIntentID(intent *stripe.PaymentIntent) string {
	if intent == nil {
		return ""
	}
	return intent.ID
}

func paymentFailureReason(intent *stripe.PaymentIntent) string {
	if intent == nil || intent.LastPaymentError == nil {
		return ""
	}
	if msg := strings.TrimSpace(intent.LastPaymentError.Msg); msg != "" {
		return msg
	}
	return string(intent.LastPaymentError.Code)
}

var _ EventVerifier = (*StripeEventVerifier)(nil)
var _ SessionFetcher = (*StripeProvider)(nil)
