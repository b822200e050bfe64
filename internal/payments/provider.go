package payments

import (
	"context"
	"errors"
)

// ErrUnknownEvent is returned when a webhook payload carries an event type the
// engine does not handle. Callers acknowledge these without processing.
var ErrUnknownEvent = errors.New("payments: unknown event")

// EventType enumerates the normalised provider events the engine reacts to.
type EventType string

const (
	// EventTypeCheckoutCompleted fires when the hosted checkout finished and
	// funds are authorised.
	EventTypeCheckoutCompleted EventType = "checkout.completed"
	// EventTypePaymentSucceeded fires when the payment intent settled.
	EventTypePaymentSucceeded EventType = "payment.succeeded"
	// EventTypePaymentFailed fires when the payment attempt definitively failed.
	EventTypePaymentFailed EventType = "payment.failed"
	// EventTypeIgnored marks verified events the engine has no handler for.
	EventTypeIgnored EventType = "ignored"
)

// CheckoutCompletedEvent identifies a finished checkout session.
type CheckoutCompletedEvent struct {
	SessionID       string
	PaymentIntentID string
}

// PaymentSucceededEvent identifies a settled payment intent.
type PaymentSucceededEvent struct {
	PaymentIntentID string
}

// PaymentFailedEvent identifies a failed payment intent.
type PaymentFailedEvent struct {
	PaymentIntentID string
	Reason          string
}

// Event is the verified, normalised webhook event. Exactly one of the typed
// payloads is populated, matching Type.
type Event struct {
	ID                string
	Type              EventType
	ProviderEventType string
	CheckoutCompleted *CheckoutCompletedEvent
	PaymentSucceeded  *PaymentSucceededEvent
	PaymentFailed     *PaymentFailedEvent
}

// EventVerifier authenticates a raw webhook payload and maps it to an Event.
type EventVerifier interface {
	VerifyAndParse(payload []byte, signature string) (Event, error)
}

// CustomerDetails carries the buyer identity and shipping address collected
// by the hosted checkout.
type CustomerDetails struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

// SessionLineItem is one purchasable line as the provider recorded it.
type SessionLineItem struct {
	ProductID string
	Title     string
	UnitPrice int64
	Quantity  int64
}

// SessionDetail is the full picture of a completed checkout session: amounts,
// buyer, and which catalog pieces were purchased.
type SessionDetail struct {
	SessionID       string
	PaymentIntentID string
	UserID          string
	Currency        string
	Subtotal        int64
	ShippingCost    int64
	Tax             int64
	Total           int64
	Destination     string
	ProductIDs      []string
	Items           []SessionLineItem
	Customer        CustomerDetails
}

// SessionFetcher retrieves the authoritative session detail from the provider
// after a checkout-completed event.
type SessionFetcher interface {
	FetchCheckoutSession(ctx context.Context, sessionID string) (SessionDetail, error)
}
