package services

import (
	"context"
	"time"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order            = domain.Order
	OrderItem        = domain.OrderItem
	OrderStatus      = domain.OrderStatus
	CustomerSnapshot = domain.CustomerSnapshot
	Product          = domain.Product
	WishlistItem     = domain.WishlistItem
	SiteSettings     = domain.SiteSettings
	Destination      = domain.Destination
)

// ShippingItem carries the per-product fields the shipping rules evaluate.
type ShippingItem struct {
	ProductID               string
	DomesticOverride        *int64
	InternationalOverride   *int64
	RequiresSpecialShipping bool
	Note                    string
}

// ShippingQuote is the computed shipping result for a cart.
type ShippingQuote struct {
	Cost                    int64
	FreeShipping            bool
	HasSpecialShippingItems bool
	Notes                   []string
}

// CartShippingCommand asks for a quote over concrete catalog products.
type CartShippingCommand struct {
	ProductIDs  []string
	Destination Destination
	Locale      string
}

// ShippingService computes shipping costs and advisory outputs for carts.
type ShippingService interface {
	// Quote is the pure rule evaluation over already-resolved inputs.
	Quote(items []ShippingItem, subtotal int64, destination Destination, settings SiteSettings) (ShippingQuote, error)
	// QuoteCart resolves products and settings, then quotes.
	QuoteCart(ctx context.Context, cmd CartShippingCommand) (ShippingQuote, error)
}

// InventoryMarkResult reports the outcome of a mark-sold sweep.
type InventoryMarkResult struct {
	Sold        []string
	AlreadySold []string
	Missing     []string
}

// InventoryReleaseResult reports the outcome of a release sweep.
type InventoryReleaseResult struct {
	Released []string
	Skipped  []string
	Missing  []string
}

// InventoryService performs the sale-state ledger sweeps. Individual failures
// are integrity warnings carried in the result, never hard errors.
type InventoryService interface {
	MarkItemsSold(ctx context.Context, productIDs []string, soldAt time.Time) InventoryMarkResult
	ReleaseItems(ctx context.Context, productIDs []string) InventoryReleaseResult
}

// TrackingUpdate carries optional shipment tracking fields.
type TrackingUpdate struct {
	TrackingNumber string
	CarrierName    string
	TrackingURL    string
}

// CreateOrderCommand captures everything required to persist an order from a
// completed payment.
type CreateOrderCommand struct {
	PaymentSessionID string
	PaymentIntentID  string
	UserID           string
	Currency         string
	Subtotal         int64
	ShippingCost     int64
	Tax              int64
	Total            int64
	Customer         CustomerSnapshot
	Items            []OrderItem
}

// OrderStatusTransitionCommand drives an admin status change.
type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	Tracking       *TrackingUpdate
	NotifyCustomer bool
	Reason         string
	ActorID        string
}

// UpdateInternalNotesCommand replaces the staff-only notes on an order.
type UpdateInternalNotesCommand struct {
	OrderID string
	Notes   string
	ActorID string
}

// ResendShipmentNoticeCommand re-dispatches the shipment email, optionally
// overriding tracking fields and persisting the override.
type ResendShipmentNoticeCommand struct {
	OrderID  string
	Tracking *TrackingUpdate
	Persist  bool
	ActorID  string
}

// CancelForPaymentFailureCommand cancels an order after the provider reported
// a failed payment.
type CancelForPaymentFailureCommand struct {
	OrderID string
	Reason  string
}

// OrderService encapsulates order persistence flows: idempotent creation, the
// status state machine, and the admin mutations.
type OrderService interface {
	// CreateFromPayment is idempotent on the payment session id. The bool
	// reports whether this call created the order.
	CreateFromPayment(ctx context.Context, cmd CreateOrderCommand) (Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	FindByPaymentSessionID(ctx context.Context, sessionID string) (Order, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (Order, error)
	// TrackOrder serves the public lookup: order number plus the customer
	// email compared case-insensitively. Misses are a uniform not-found.
	TrackOrder(ctx context.Context, orderNumber, email string) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	// MarkPaid promotes pending → paid. The bool reports whether the
	// promotion happened; an order already past pending is a no-op.
	MarkPaid(ctx context.Context, orderID string) (Order, bool, error)
	CancelForPaymentFailure(ctx context.Context, cmd CancelForPaymentFailureCommand) (Order, error)
	UpdateInternalNotes(ctx context.Context, cmd UpdateInternalNotesCommand) (Order, error)
	ResendShipmentNotice(ctx context.Context, cmd ResendShipmentNoticeCommand) (Order, error)
}

// Mailer abstracts the outbound mail transport. Delivery mechanics live
// outside the services; implementations publish to a queue.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order Order) error
	SendAdminNewOrder(ctx context.Context, order Order, adminEmail string) error
	SendWishlistSold(ctx context.Context, recipient string, item OrderItem) error
	SendShipmentNotice(ctx context.Context, order Order) error
}

// NotificationService fans out order emails with per-dispatch isolation.
type NotificationService interface {
	// OrderConfirmed dispatches the confirmation, the admin alert, and the
	// wishlist sold notices. Failures are logged and swallowed.
	OrderConfirmed(ctx context.Context, order Order)
	// OrderShipped dispatches the shipment notice and surfaces the error so
	// explicit resends can report failure.
	OrderShipped(ctx context.Context, order Order) error
}

// CheckoutOutcome reports what HandleCheckoutCompleted did.
type CheckoutOutcome struct {
	Order     Order
	Created   bool
	Duplicate bool
}

// PaymentEventService orchestrates the verified provider webhook events.
type PaymentEventService interface {
	HandleCheckoutCompleted(ctx context.Context, evt payments.CheckoutCompletedEvent) (CheckoutOutcome, error)
	HandlePaymentSucceeded(ctx context.Context, evt payments.PaymentSucceededEvent) error
	HandlePaymentFailed(ctx context.Context, evt payments.PaymentFailedEvent) error
}
