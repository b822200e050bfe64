package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix     = "ord_"
	orderNumberPrefix = "MC"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates duplicate creation or concurrent modification.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderNotificationFailed indicates an explicitly requested email could
	// not be dispatched.
	ErrOrderNotificationFailed = errors.New("order: notification failed")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {domain.OrderStatusPaid, domain.OrderStatusCanceled},
	domain.OrderStatusPaid:    {domain.OrderStatusShipped, domain.OrderStatusCanceled},
	domain.OrderStatusShipped: {domain.OrderStatusDelivered, domain.OrderStatusCanceled},
}

// Statuses an operator may set directly through the admin surface.
var adminTargetStatuses = []domain.OrderStatus{
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
	domain.OrderStatusCanceled,
}

// Statuses for which a shipment notice makes sense.
var shipmentNoticeStatuses = []domain.OrderStatus{
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Notifier     NotificationService
	Clock        func() time.Time
	IDGenerator  func() string
	NumberSuffix func() string
	Events       OrderEventPublisher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	notifier  NotificationService
	clock     func() time.Time
	newID     func() string
	newSuffix func() string
	events    OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	suffix := deps.NumberSuffix
	if suffix == nil {
		// ULIDs end in Crockford base32 randomness; the tail makes a compact
		// human-readable order number suffix.
		suffix = func() string {
			id := ulid.Make().String()
			return id[len(id)-6:]
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:   deps.Orders,
		notifier: deps.Notifier,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		newSuffix: suffix,
		events:    deps.Events,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// CreateFromPayment persists an order for a completed checkout. Creation is
// idempotent on the payment session id: a session that already produced an
// order returns that order with created=false.
func (s *orderService) CreateFromPayment(ctx context.Context, cmd CreateOrderCommand) (Order, bool, error) {
	sessionID := strings.TrimSpace(cmd.PaymentSessionID)
	if sessionID == "" {
		return Order{}, false, fmt.Errorf("%w: payment session id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, false, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return Order{}, false, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	if cmd.Subtotal < 0 || cmd.ShippingCost < 0 || cmd.Tax < 0 || cmd.Total < 0 {
		return Order{}, false, fmt.Errorf("%w: amounts must not be negative", ErrOrderInvalidInput)
	}
	if cmd.Total != cmd.Subtotal+cmd.ShippingCost+cmd.Tax {
		return Order{}, false, fmt.Errorf("%w: total %d does not equal subtotal %d + shipping %d + tax %d",
			ErrOrderInvalidInput, cmd.Total, cmd.Subtotal, cmd.ShippingCost, cmd.Tax)
	}

	if existing, err := s.orders.FindByPaymentSessionID(ctx, sessionID); err == nil {
		return existing, false, nil
	} else if mapped := s.mapRepositoryError(err); !errors.Is(mapped, ErrOrderNotFound) {
		return Order{}, false, mapped
	}

	now := s.now()
	order := Order{
		ID:               orderIDPrefix + s.newID(),
		OrderNumber:      s.generateOrderNumber(now),
		UserID:           strings.TrimSpace(cmd.UserID),
		Status:           domain.OrderStatusPending,
		Currency:         currency,
		Subtotal:         cmd.Subtotal,
		ShippingCost:     cmd.ShippingCost,
		Tax:              cmd.Tax,
		Total:            cmd.Total,
		PaymentSessionID: sessionID,
		PaymentIntentID:  strings.TrimSpace(cmd.PaymentIntentID),
		Customer:         cmd.Customer,
		Items:            cloneOrderItems(cmd.Items),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.orders.Insert(ctx, order)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if !errors.Is(mapped, ErrOrderConflict) {
			return Order{}, false, mapped
		}
		// Either the session index raced with a concurrent webhook delivery
		// or the generated order number collided. Re-check the session first;
		// a miss means the collision was on the number, which gets one retry.
		if existing, findErr := s.orders.FindByPaymentSessionID(ctx, sessionID); findErr == nil {
			return existing, false, nil
		}
		order.OrderNumber = s.generateOrderNumber(now)
		if err := s.orders.Insert(ctx, order); err != nil {
			return Order{}, false, s.mapRepositoryError(err)
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		OccurredAt:    now,
		Metadata: map[string]any{
			"paymentSessionId": sessionID,
			"total":            order.Total,
			"currency":         order.Currency,
		},
	})

	return order, true, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) FindByPaymentSessionID(ctx context.Context, sessionID string) (Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Order{}, fmt.Errorf("%w: payment session id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByPaymentSessionID(ctx, sessionID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) FindByPaymentIntentID(ctx context.Context, intentID string) (Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Order{}, fmt.Errorf("%w: payment intent id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByPaymentIntentID(ctx, intentID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// TrackOrder serves the public lookup. A wrong email and a wrong order number
// are indistinguishable to the caller.
func (s *orderService) TrackOrder(ctx context.Context, orderNumber, email string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	email = strings.TrimSpace(email)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	if email == "" {
		return Order{}, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !strings.EqualFold(strings.TrimSpace(order.Customer.Email), email) {
		return Order{}, fmt.Errorf("%w: no order matches the given number and email", ErrOrderNotFound)
	}
	return order, nil
}

// TransitionStatus applies an operator-driven status change, updating
// tracking fields and optionally dispatching the shipment notice.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !slices.Contains(adminTargetStatuses, target) {
		return Order{}, fmt.Errorf("%w: status %q cannot be set directly", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	prevStatus := order.Status

	if err := s.applyStatusTransition(&order, target, now); err != nil {
		return Order{}, err
	}
	applyTracking(&order, cmd.Tracking)
	if target == domain.OrderStatusCanceled {
		if reason := strings.TrimSpace(cmd.Reason); reason != "" {
			order.CancelReason = optionalString(reason)
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if cmd.NotifyCustomer && target == domain.OrderStatusShipped && s.notifier != nil {
		if err := s.notifier.OrderShipped(ctx, order); err != nil {
			s.logger(ctx, "order.shipment_notice.failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     now,
	})

	return order, nil
}

// MarkPaid promotes a pending order to paid. Orders already past pending are
// left untouched so late or duplicated provider events stay harmless.
func (s *orderService) MarkPaid(ctx context.Context, orderID string) (Order, bool, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, false, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, false, s.mapRepositoryError(err)
	}
	if order.Status != domain.OrderStatusPending {
		return order, false, nil
	}

	now := s.now()
	prevStatus := order.Status
	if err := s.applyStatusTransition(&order, domain.OrderStatusPaid, now); err != nil {
		return Order{}, false, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, false, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		OccurredAt:     now,
	})

	return order, true, nil
}

// CancelForPaymentFailure cancels the order and records the provider's
// failure reason on the internal notes. Already-canceled orders are a no-op.
func (s *orderService) CancelForPaymentFailure(ctx context.Context, cmd CancelForPaymentFailureCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.Status == domain.OrderStatusCanceled {
		return order, nil
	}

	now := s.now()
	prevStatus := order.Status
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "payment failed"
	} else {
		reason = "payment failed: " + reason
	}

	if err := s.applyStatusTransition(&order, domain.OrderStatusCanceled, now); err != nil {
		return Order{}, err
	}
	order.CancelReason = optionalString(reason)
	order.InternalNotes = appendNoteLine(order.InternalNotes, fmt.Sprintf("[%s] %s", now.Format(time.RFC3339), reason))

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		OccurredAt:     now,
		Metadata:       map[string]any{"reason": reason},
	})

	return order, nil
}

// UpdateInternalNotes replaces the staff notes. Markup is stripped before
// persisting since the notes render in the admin console.
func (s *orderService) UpdateInternalNotes(ctx context.Context, cmd UpdateInternalNotesCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order.InternalNotes = strings.TrimSpace(s.sanitizer.Sanitize(cmd.Notes))
	order.UpdatedAt = s.now()

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// ResendShipmentNotice re-dispatches the shipment email for an order that has
// shipped. Unlike transition-triggered notices, a send failure here is the
// whole point of the call and is surfaced to the operator.
func (s *orderService) ResendShipmentNotice(ctx context.Context, cmd ResendShipmentNoticeCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if s.notifier == nil {
		return Order{}, fmt.Errorf("%w: no notifier configured", ErrOrderNotificationFailed)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if !slices.Contains(shipmentNoticeStatuses, order.Status) {
		return Order{}, fmt.Errorf("%w: shipment notice requires a shipped or delivered order, got %q", ErrOrderInvalidState, order.Status)
	}

	if cmd.Tracking != nil {
		applyTracking(&order, cmd.Tracking)
		if cmd.Persist {
			order.UpdatedAt = s.now()
			if err := s.orders.Update(ctx, order); err != nil {
				return Order{}, s.mapRepositoryError(err)
			}
		}
	}

	if err := s.notifier.OrderShipped(ctx, order); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderNotificationFailed, err)
	}
	return order, nil
}

func (s *orderService) applyStatusTransition(order *Order, target domain.OrderStatus, now time.Time) error {
	if !canTransition(order.Status, target) {
		return fmt.Errorf("%w: %s → %s", ErrOrderInvalidState, order.Status, target)
	}
	order.Status = target
	order.UpdatedAt = now
	s.updateTimestamps(order, target, now)
	return nil
}

func (s *orderService) updateTimestamps(order *Order, status domain.OrderStatus, now time.Time) {
	switch status {
	case domain.OrderStatusPaid:
		order.PaidAt = &now
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCanceled:
		if order.CanceledAt == nil {
			order.CanceledAt = &now
		}
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, now.Format("20060102"), strings.ToUpper(s.newSuffix()))
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

func applyTracking(order *Order, tracking *TrackingUpdate) {
	if tracking == nil {
		return
	}
	if number := strings.TrimSpace(tracking.TrackingNumber); number != "" {
		order.TrackingNumber = number
	}
	if carrier := strings.TrimSpace(tracking.CarrierName); carrier != "" {
		order.CarrierName = carrier
	}
	if url := strings.TrimSpace(tracking.TrackingURL); url != "" {
		order.TrackingURL = url
	}
}

func appendNoteLine(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

func cloneOrderItems(items []OrderItem) []OrderItem {
	cloned := make([]OrderItem, len(items))
	copy(cloned, items)
	return cloned
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	ref := v
	return &ref
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
