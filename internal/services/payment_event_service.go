package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/payments"
	"github.com/maison-curio/api/internal/repositories"
)

var (
	// ErrPaymentEventInvalid signals an event payload the handler cannot act on.
	ErrPaymentEventInvalid = errors.New("payment event: invalid payload")
)

// PaymentEventServiceDeps bundles the collaborators for the payment event service.
type PaymentEventServiceDeps struct {
	Orders    OrderService
	Inventory InventoryService
	Notifier  NotificationService
	Sessions  payments.SessionFetcher
	Products  repositories.ProductRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type paymentEventService struct {
	orders    OrderService
	inventory InventoryService
	notifier  NotificationService
	sessions  payments.SessionFetcher
	products  repositories.ProductRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewPaymentEventService validates dependencies and returns a PaymentEventService.
func NewPaymentEventService(deps PaymentEventServiceDeps) (PaymentEventService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment event service requires order service")
	}
	if deps.Inventory == nil {
		return nil, errors.New("payment event service requires inventory service")
	}
	if deps.Notifier == nil {
		return nil, errors.New("payment event service requires notification service")
	}
	if deps.Sessions == nil {
		return nil, errors.New("payment event service requires session fetcher")
	}
	if deps.Products == nil {
		return nil, errors.New("payment event service requires product repository")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &paymentEventService{
		orders:    deps.Orders,
		inventory: deps.Inventory,
		notifier:  deps.Notifier,
		sessions:  deps.Sessions,
		products:  deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// HandleCheckoutCompleted turns a completed checkout into an order. The order
// is persisted before any inventory flips so a crash can never leave a sold
// piece without a paying order behind it. Notification failures never bubble
// up; the provider has been paid and must receive a 2xx.
func (s *paymentEventService) HandleCheckoutCompleted(ctx context.Context, evt payments.CheckoutCompletedEvent) (CheckoutOutcome, error) {
	sessionID := strings.TrimSpace(evt.SessionID)
	if sessionID == "" {
		return CheckoutOutcome{}, fmt.Errorf("%w: session id is required", ErrPaymentEventInvalid)
	}

	if existing, err := s.orders.FindByPaymentSessionID(ctx, sessionID); err == nil {
		s.logger(ctx, "payment_events.checkout.duplicate", map[string]any{
			"sessionId": sessionID,
			"orderId":   existing.ID,
		})
		return CheckoutOutcome{Order: existing, Duplicate: true}, nil
	} else if !errors.Is(err, ErrOrderNotFound) {
		return CheckoutOutcome{}, err
	}

	detail, err := s.sessions.FetchCheckoutSession(ctx, sessionID)
	if err != nil {
		return CheckoutOutcome{}, fmt.Errorf("fetch checkout session %s: %w", sessionID, err)
	}

	items, err := s.buildOrderItems(ctx, detail)
	if err != nil {
		return CheckoutOutcome{}, err
	}

	intentID := strings.TrimSpace(detail.PaymentIntentID)
	if intentID == "" {
		intentID = strings.TrimSpace(evt.PaymentIntentID)
	}

	order, created, err := s.orders.CreateFromPayment(ctx, CreateOrderCommand{
		PaymentSessionID: sessionID,
		PaymentIntentID:  intentID,
		UserID:           detail.UserID,
		Currency:         detail.Currency,
		Subtotal:         detail.Subtotal,
		ShippingCost:     detail.ShippingCost,
		Tax:              detail.Tax,
		Total:            detail.Total,
		Customer:         customerSnapshot(detail.Customer),
		Items:            items,
	})
	if err != nil {
		return CheckoutOutcome{}, err
	}
	if !created {
		return CheckoutOutcome{Order: order, Duplicate: true}, nil
	}

	result := s.inventory.MarkItemsSold(ctx, order.ProductIDs(), s.clock())
	if len(result.AlreadySold) > 0 || len(result.Missing) > 0 {
		s.logger(ctx, "payment_events.checkout.inventory_mismatch", map[string]any{
			"orderId":     order.ID,
			"alreadySold": result.AlreadySold,
			"missing":     result.Missing,
		})
	}

	s.notifier.OrderConfirmed(ctx, order)

	return CheckoutOutcome{Order: order, Created: true}, nil
}

// HandlePaymentSucceeded promotes the matching order to paid. An unknown
// intent is acknowledged without action; ordering of provider events is not
// guaranteed and the checkout-completed path settles the order either way.
func (s *paymentEventService) HandlePaymentSucceeded(ctx context.Context, evt payments.PaymentSucceededEvent) error {
	intentID := strings.TrimSpace(evt.PaymentIntentID)
	if intentID == "" {
		return fmt.Errorf("%w: payment intent id is required", ErrPaymentEventInvalid)
	}

	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.logger(ctx, "payment_events.succeeded.no_order", map[string]any{"paymentIntent": intentID})
			return nil
		}
		return err
	}

	if _, promoted, err := s.orders.MarkPaid(ctx, order.ID); err != nil {
		return err
	} else if !promoted {
		s.logger(ctx, "payment_events.succeeded.noop", map[string]any{
			"orderId": order.ID,
			"status":  string(order.Status),
		})
	}
	return nil
}

// HandlePaymentFailed cancels the matching order and returns its pieces to
// the shop floor. Payment failure is the one cancellation path that releases
// inventory automatically.
func (s *paymentEventService) HandlePaymentFailed(ctx context.Context, evt payments.PaymentFailedEvent) error {
	intentID := strings.TrimSpace(evt.PaymentIntentID)
	if intentID == "" {
		return fmt.Errorf("%w: payment intent id is required", ErrPaymentEventInvalid)
	}

	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.logger(ctx, "payment_events.failed.no_order", map[string]any{"paymentIntent": intentID})
			return nil
		}
		return err
	}

	canceled, err := s.orders.CancelForPaymentFailure(ctx, CancelForPaymentFailureCommand{
		OrderID: order.ID,
		Reason:  evt.Reason,
	})
	if err != nil {
		if errors.Is(err, ErrOrderInvalidState) {
			s.logger(ctx, "payment_events.failed.not_cancellable", map[string]any{
				"orderId": order.ID,
				"status":  string(order.Status),
			})
			return nil
		}
		return err
	}

	result := s.inventory.ReleaseItems(ctx, canceled.ProductIDs())
	if len(result.Missing) > 0 {
		s.logger(ctx, "payment_events.failed.release_mismatch", map[string]any{
			"orderId": canceled.ID,
			"missing": result.Missing,
		})
	}
	return nil
}

// buildOrderItems snapshots the purchased pieces from the catalog, falling
// back to the provider's line items for anything the catalog no longer has.
func (s *paymentEventService) buildOrderItems(ctx context.Context, detail payments.SessionDetail) ([]OrderItem, error) {
	byID := make(map[string]Product)
	if len(detail.ProductIDs) > 0 {
		products, err := s.products.FindByIDs(ctx, detail.ProductIDs)
		if err != nil {
			return nil, fmt.Errorf("load products for session %s: %w", detail.SessionID, err)
		}
		for _, product := range products {
			byID[product.ID] = product
		}
	}

	var items []OrderItem
	for _, productID := range detail.ProductIDs {
		if product, ok := byID[productID]; ok {
			items = append(items, OrderItem{
				ProductID: product.ID,
				Title:     product.Title,
				Slug:      product.Slug,
				UnitPrice: product.Price,
				Quantity:  1,
			})
			continue
		}
		if line, ok := sessionLineFor(detail.Items, productID); ok {
			items = append(items, OrderItem{
				ProductID: productID,
				Title:     line.Title,
				UnitPrice: line.UnitPrice,
				Quantity:  int(max(line.Quantity, 1)),
			})
			continue
		}
		s.logger(ctx, "payment_events.checkout.unknown_product", map[string]any{
			"sessionId": detail.SessionID,
			"productId": productID,
		})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: session %s references no resolvable products", ErrPaymentEventInvalid, detail.SessionID)
	}
	return items, nil
}

func sessionLineFor(lines []payments.SessionLineItem, productID string) (payments.SessionLineItem, bool) {
	for _, line := range lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return payments.SessionLineItem{}, false
}

func customerSnapshot(details payments.CustomerDetails) domain.CustomerSnapshot {
	return domain.CustomerSnapshot{
		Name:       strings.TrimSpace(details.Name),
		Email:      strings.TrimSpace(details.Email),
		Phone:      strings.TrimSpace(details.Phone),
		Line1:      strings.TrimSpace(details.Line1),
		Line2:      strings.TrimSpace(details.Line2),
		City:       strings.TrimSpace(details.City),
		PostalCode: strings.TrimSpace(details.PostalCode),
		Country:    strings.TrimSpace(details.Country),
	}
}
