package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	domain "github.com/maison-curio/api/internal/domain"
	"github.com/maison-curio/api/internal/payments"
)

type stubOrderService struct {
	createFn        func(context.Context, CreateOrderCommand) (Order, bool, error)
	findBySessionFn func(context.Context, string) (Order, error)
	findByIntentFn  func(context.Context, string) (Order, error)
	markPaidFn      func(context.Context, string) (Order, bool, error)
	cancelFn        func(context.Context, CancelForPaymentFailureCommand) (Order, error)
}

func (s *stubOrderService) CreateFromPayment(ctx context.Context, cmd CreateOrderCommand) (Order, bool, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return Order{}, false, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(context.Context, string) (Order, error) {
	return Order{}, errors.New("not implemented")
}

func (s *stubOrderService) FindByPaymentSessionID(ctx context.Context, sessionID string) (Order, error) {
	if s.findBySessionFn != nil {
		return s.findBySessionFn(ctx, sessionID)
	}
	return Order{}, ErrOrderNotFound
}

func (s *stubOrderService) FindByPaymentIntentID(ctx context.Context, intentID string) (Order, error) {
	if s.findByIntentFn != nil {
		return s.findByIntentFn(ctx, intentID)
	}
	return Order{}, ErrOrderNotFound
}

func (s *stubOrderService) TrackOrder(context.Context, string, string) (Order, error) {
	return Order{}, errors.New("not implemented")
}

func (s *stubOrderService) TransitionStatus(context.Context, OrderStatusTransitionCommand) (Order, error) {
	return Order{}, errors.New("not implemented")
}

func (s *stubOrderService) MarkPaid(ctx context.Context, orderID string) (Order, bool, error) {
	if s.markPaidFn != nil {
		return s.markPaidFn(ctx, orderID)
	}
	return Order{}, false, errors.New("not implemented")
}

func (s *stubOrderService) CancelForPaymentFailure(ctx context.Context, cmd CancelForPaymentFailureCommand) (Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return Order{}, errors.New("not implemented")
}

func (s *stubOrderService) UpdateInternalNotes(context.Context, UpdateInternalNotesCommand) (Order, error) {
	return Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ResendShipmentNotice(context.Context, ResendShipmentNoticeCommand) (Order, error) {
	return Order{}, errors.New("not implemented")
}

type recordingInventory struct {
	marked   [][]string
	released [][]string
	mark     InventoryMarkResult
	release  InventoryReleaseResult
}

func (s *recordingInventory) MarkItemsSold(_ context.Context, productIDs []string, _ time.Time) InventoryMarkResult {
	s.marked = append(s.marked, productIDs)
	return s.mark
}

func (s *recordingInventory) ReleaseItems(_ context.Context, productIDs []string) InventoryReleaseResult {
	s.released = append(s.released, productIDs)
	return s.release
}

type stubSessionFetcher struct {
	fetchFn func(context.Context, string) (payments.SessionDetail, error)
}

func (s *stubSessionFetcher) FetchCheckoutSession(ctx context.Context, sessionID string) (payments.SessionDetail, error) {
	if s.fetchFn != nil {
		return s.fetchFn(ctx, sessionID)
	}
	return payments.SessionDetail{}, errors.New("not implemented")
}

func completedSessionDetail() payments.SessionDetail {
	return payments.SessionDetail{
		SessionID:       "cs_test_123",
		PaymentIntentID: "pi_test_123",
		Currency:        "EUR",
		Subtotal:        48000,
		ShippingCost:    5000,
		Tax:             2000,
		Total:           55000,
		ProductIDs:      []string{"prd_clock"},
		Customer:        payments.CustomerDetails{Name: "Ada Vermeer", Email: "ada@example.com"},
	}
}

func newTestPaymentEventService(t *testing.T, deps PaymentEventServiceDeps) PaymentEventService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderService{}
	}
	if deps.Inventory == nil {
		deps.Inventory = &recordingInventory{}
	}
	if deps.Notifier == nil {
		deps.Notifier = &stubNotifier{}
	}
	if deps.Sessions == nil {
		deps.Sessions = &stubSessionFetcher{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepo{}
	}
	svc, err := NewPaymentEventService(deps)
	if err != nil {
		t.Fatalf("NewPaymentEventService: %v", err)
	}
	return svc
}

func TestPaymentEventCheckoutCompletedCreatesOrderThenMarksSold(t *testing.T) {
	inventory := &recordingInventory{}
	notifier := &stubNotifier{}
	var created CreateOrderCommand

	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd CreateOrderCommand) (Order, bool, error) {
			created = cmd
			return Order{
				ID:    "ord_1",
				Items: cmd.Items,
			}, true, nil
		},
	}
	sessions := &stubSessionFetcher{
		fetchFn: func(_ context.Context, sessionID string) (payments.SessionDetail, error) {
			if sessionID != "cs_test_123" {
				t.Fatalf("unexpected session id %s", sessionID)
			}
			return completedSessionDetail(), nil
		},
	}
	products := &stubProductRepo{
		findFn: func(context.Context, []string) ([]domain.Product, error) {
			return []domain.Product{{ID: "prd_clock", Title: "Empire mantel clock", Price: 48000}}, nil
		},
	}

	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{
		Orders:    orders,
		Inventory: inventory,
		Notifier:  notifier,
		Sessions:  sessions,
		Products:  products,
	})

	outcome, err := svc.HandleCheckoutCompleted(context.Background(), payments.CheckoutCompletedEvent{SessionID: "cs_test_123"})
	if err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}
	if !outcome.Created {
		t.Fatalf("expected a created order")
	}
	if created.Total != 55000 || created.Subtotal != 48000 {
		t.Fatalf("session amounts not propagated: %+v", created)
	}
	if len(created.Items) != 1 || created.Items[0].Title != "Empire mantel clock" {
		t.Fatalf("items must be snapshotted from the catalog: %+v", created.Items)
	}
	if len(inventory.marked) != 1 || !reflect.DeepEqual(inventory.marked[0], []string{"prd_clock"}) {
		t.Fatalf("inventory must be marked after creation: %v", inventory.marked)
	}
	if len(notifier.confirmed) != 1 {
		t.Fatalf("expected confirmation fan-out")
	}
}

func TestPaymentEventCheckoutCompletedDuplicateSessionShortCircuits(t *testing.T) {
	inventory := &recordingInventory{}
	notifier := &stubNotifier{}
	orders := &stubOrderService{
		findBySessionFn: func(context.Context, string) (Order, error) {
			return Order{ID: "ord_existing"}, nil
		},
	}
	fetches := 0
	sessions := &stubSessionFetcher{
		fetchFn: func(context.Context, string) (payments.SessionDetail, error) {
			fetches++
			return payments.SessionDetail{}, nil
		},
	}

	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{
		Orders:    orders,
		Inventory: inventory,
		Notifier:  notifier,
		Sessions:  sessions,
	})

	outcome, err := svc.HandleCheckoutCompleted(context.Background(), payments.CheckoutCompletedEvent{SessionID: "cs_test_123"})
	if err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}
	if !outcome.Duplicate || outcome.Order.ID != "ord_existing" {
		t.Fatalf("expected duplicate outcome, got %+v", outcome)
	}
	if fetches != 0 {
		t.Fatalf("duplicate events must not hit the provider")
	}
	if len(inventory.marked) != 0 || len(notifier.confirmed) != 0 {
		t.Fatalf("duplicate events must cause no side effects")
	}
}

func TestPaymentEventCheckoutCompletedFallsBackToSessionLines(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(_ context.Context, cmd CreateOrderCommand) (Order, bool, error) {
			return Order{ID: "ord_1", Items: cmd.Items}, true, nil
		},
	}
	detail := completedSessionDetail()
	detail.Items = []payments.SessionLineItem{
		{ProductID: "prd_clock", Title: "Empire mantel clock (archived)", UnitPrice: 48000, Quantity: 1},
	}
	sessions := &stubSessionFetcher{
		fetchFn: func(context.Context, string) (payments.SessionDetail, error) {
			return detail, nil
		},
	}
	products := &stubProductRepo{
		findFn: func(context.Context, []string) ([]domain.Product, error) {
			return nil, nil
		},
	}

	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{
		Orders:   orders,
		Sessions: sessions,
		Products: products,
	})

	outcome, err := svc.HandleCheckoutCompleted(context.Background(), payments.CheckoutCompletedEvent{SessionID: "cs_test_123"})
	if err != nil {
		t.Fatalf("HandleCheckoutCompleted: %v", err)
	}
	if len(outcome.Order.Items) != 1 || outcome.Order.Items[0].Title != "Empire mantel clock (archived)" {
		t.Fatalf("expected provider line fallback, got %+v", outcome.Order.Items)
	}
}

func TestPaymentEventSucceededPromotesOrder(t *testing.T) {
	promoted := ""
	orders := &stubOrderService{
		findByIntentFn: func(_ context.Context, intentID string) (Order, error) {
			return Order{ID: "ord_1", Status: domain.OrderStatusPending}, nil
		},
		markPaidFn: func(_ context.Context, orderID string) (Order, bool, error) {
			promoted = orderID
			return Order{ID: orderID, Status: domain.OrderStatusPaid}, true, nil
		},
	}
	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{Orders: orders})

	if err := svc.HandlePaymentSucceeded(context.Background(), payments.PaymentSucceededEvent{PaymentIntentID: "pi_test_123"}); err != nil {
		t.Fatalf("HandlePaymentSucceeded: %v", err)
	}
	if promoted != "ord_1" {
		t.Fatalf("expected ord_1 promoted, got %q", promoted)
	}
}

func TestPaymentEventSucceededUnknownIntentIsAcknowledged(t *testing.T) {
	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{})

	if err := svc.HandlePaymentSucceeded(context.Background(), payments.PaymentSucceededEvent{PaymentIntentID: "pi_unknown"}); err != nil {
		t.Fatalf("unknown intents must be acknowledged, got %v", err)
	}
}

func TestPaymentEventFailedCancelsAndReleasesInventory(t *testing.T) {
	inventory := &recordingInventory{}
	var cancelCmd CancelForPaymentFailureCommand
	orders := &stubOrderService{
		findByIntentFn: func(context.Context, string) (Order, error) {
			return Order{ID: "ord_1", Status: domain.OrderStatusPending}, nil
		},
		cancelFn: func(_ context.Context, cmd CancelForPaymentFailureCommand) (Order, error) {
			cancelCmd = cmd
			return Order{
				ID:     "ord_1",
				Status: domain.OrderStatusCanceled,
				Items:  []OrderItem{{ProductID: "prd_clock"}},
			}, nil
		},
	}
	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{
		Orders:    orders,
		Inventory: inventory,
	})

	err := svc.HandlePaymentFailed(context.Background(), payments.PaymentFailedEvent{
		PaymentIntentID: "pi_test_123",
		Reason:          "card declined",
	})
	if err != nil {
		t.Fatalf("HandlePaymentFailed: %v", err)
	}
	if cancelCmd.Reason != "card declined" {
		t.Fatalf("failure reason not forwarded: %+v", cancelCmd)
	}
	if len(inventory.released) != 1 || !reflect.DeepEqual(inventory.released[0], []string{"prd_clock"}) {
		t.Fatalf("expected inventory release, got %v", inventory.released)
	}
}

func TestPaymentEventFailedUnknownIntentIsAcknowledged(t *testing.T) {
	inventory := &recordingInventory{}
	svc := newTestPaymentEventService(t, PaymentEventServiceDeps{Inventory: inventory})

	if err := svc.HandlePaymentFailed(context.Background(), payments.PaymentFailedEvent{PaymentIntentID: "pi_unknown"}); err != nil {
		t.Fatalf("unknown intents must be acknowledged, got %v", err)
	}
	if len(inventory.released) != 0 {
		t.Fatalf("no release expected")
	}
}
