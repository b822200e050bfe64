package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/maison-curio/api/internal/domain"
)

type stubWishlistRepo struct {
	listFn func(context.Context, string) ([]domain.WishlistItem, error)
	markFn func(context.Context, string) (bool, error)
}

func (s *stubWishlistRepo) ListPendingSoldNotifications(ctx context.Context, productID string) ([]domain.WishlistItem, error) {
	if s.listFn != nil {
		return s.listFn(ctx, productID)
	}
	return nil, nil
}

func (s *stubWishlistRepo) MarkSoldNotified(ctx context.Context, itemID string) (bool, error) {
	if s.markFn != nil {
		return s.markFn(ctx, itemID)
	}
	return true, nil
}

type captureMailer struct {
	confirmations []Order
	adminAlerts   []string
	wishlistSends []string
	shipments     []Order

	confirmErr  error
	adminErr    error
	wishlistErr error
	shipmentErr error
}

func (m *captureMailer) SendOrderConfirmation(_ context.Context, order Order) error {
	m.confirmations = append(m.confirmations, order)
	return m.confirmErr
}

func (m *captureMailer) SendAdminNewOrder(_ context.Context, _ Order, adminEmail string) error {
	m.adminAlerts = append(m.adminAlerts, adminEmail)
	return m.adminErr
}

func (m *captureMailer) SendWishlistSold(_ context.Context, recipient string, _ OrderItem) error {
	m.wishlistSends = append(m.wishlistSends, recipient)
	return m.wishlistErr
}

func (m *captureMailer) SendShipmentNotice(_ context.Context, order Order) error {
	m.shipments = append(m.shipments, order)
	return m.shipmentErr
}

func newTestNotificationService(t *testing.T, mailer *captureMailer, wishlists *stubWishlistRepo, settings *stubSettingsRepo) NotificationService {
	t.Helper()
	svc, err := NewNotificationService(NotificationServiceDeps{
		Mailer:    mailer,
		Wishlists: wishlists,
		Settings:  settings,
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	return svc
}

func confirmedOrder() Order {
	return Order{
		ID:          "ord_1",
		OrderNumber: "MC-20250501-A1B2C3",
		Customer:    domain.CustomerSnapshot{Email: "ada@example.com"},
		Items: []OrderItem{
			{ProductID: "prd_clock", Title: "Empire mantel clock", UnitPrice: 48000, Quantity: 1},
		},
	}
}

func TestNotificationOrderConfirmedFansOut(t *testing.T) {
	mailer := &captureMailer{}
	wishlists := &stubWishlistRepo{
		listFn: func(_ context.Context, productID string) ([]domain.WishlistItem, error) {
			if productID != "prd_clock" {
				t.Fatalf("unexpected product id %s", productID)
			}
			return []domain.WishlistItem{
				{ID: "wsl_1", Email: "collector@example.com", NotifyOnSale: true},
			}, nil
		},
	}
	settings := &stubSettingsRepo{
		getFn: func(context.Context) (domain.SiteSettings, error) {
			return domain.SiteSettings{AdminEmail: "owner@maisoncurio.example"}, nil
		},
	}
	svc := newTestNotificationService(t, mailer, wishlists, settings)

	svc.OrderConfirmed(context.Background(), confirmedOrder())

	if len(mailer.confirmations) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(mailer.confirmations))
	}
	if len(mailer.adminAlerts) != 1 || mailer.adminAlerts[0] != "owner@maisoncurio.example" {
		t.Fatalf("unexpected admin alerts %v", mailer.adminAlerts)
	}
	if len(mailer.wishlistSends) != 1 || mailer.wishlistSends[0] != "collector@example.com" {
		t.Fatalf("unexpected wishlist sends %v", mailer.wishlistSends)
	}
}

func TestNotificationOrderConfirmedIsolatesFailures(t *testing.T) {
	mailer := &captureMailer{
		confirmErr: errors.New("bounce"),
		adminErr:   errors.New("bounce"),
	}
	wishlists := &stubWishlistRepo{
		listFn: func(context.Context, string) ([]domain.WishlistItem, error) {
			return []domain.WishlistItem{{ID: "wsl_1", Email: "collector@example.com"}}, nil
		},
	}
	settings := &stubSettingsRepo{
		getFn: func(context.Context) (domain.SiteSettings, error) {
			return domain.SiteSettings{AdminEmail: "owner@maisoncurio.example"}, nil
		},
	}
	svc := newTestNotificationService(t, mailer, wishlists, settings)

	svc.OrderConfirmed(context.Background(), confirmedOrder())

	if len(mailer.wishlistSends) != 1 {
		t.Fatalf("wishlist dispatch must run despite earlier failures, got %d", len(mailer.wishlistSends))
	}
}

func TestNotificationOrderConfirmedSkipsAdminWhenSettingsFail(t *testing.T) {
	mailer := &captureMailer{}
	settings := &stubSettingsRepo{
		getFn: func(context.Context) (domain.SiteSettings, error) {
			return domain.SiteSettings{}, errors.New("firestore down")
		},
	}
	svc := newTestNotificationService(t, mailer, &stubWishlistRepo{}, settings)

	svc.OrderConfirmed(context.Background(), confirmedOrder())

	if len(mailer.adminAlerts) != 0 {
		t.Fatalf("admin alert must be skipped, got %v", mailer.adminAlerts)
	}
	if len(mailer.confirmations) != 1 {
		t.Fatalf("confirmation must still go out")
	}
}

func TestNotificationWishlistSendsAtMostOnce(t *testing.T) {
	mailer := &captureMailer{}
	flips := 0
	wishlists := &stubWishlistRepo{
		listFn: func(context.Context, string) ([]domain.WishlistItem, error) {
			return []domain.WishlistItem{
				{ID: "wsl_fresh", Email: "first@example.com"},
				{ID: "wsl_raced", Email: "second@example.com"},
			}, nil
		},
		markFn: func(_ context.Context, itemID string) (bool, error) {
			flips++
			return itemID == "wsl_fresh", nil
		},
	}
	svc := newTestNotificationService(t, mailer, wishlists, &stubSettingsRepo{})

	svc.OrderConfirmed(context.Background(), confirmedOrder())

	if flips != 2 {
		t.Fatalf("expected both entries attempted, got %d", flips)
	}
	if len(mailer.wishlistSends) != 1 || mailer.wishlistSends[0] != "first@example.com" {
		t.Fatalf("only the entry that won the flip may be mailed, got %v", mailer.wishlistSends)
	}
}

func TestNotificationWishlistSkipsBuyerEntries(t *testing.T) {
	mailer := &captureMailer{}
	flips := 0
	wishlists := &stubWishlistRepo{
		listFn: func(context.Context, string) ([]domain.WishlistItem, error) {
			return []domain.WishlistItem{
				{ID: "wsl_buyer_email", Email: "ADA@Example.com"},
				{ID: "wsl_buyer_account", UserID: "usr_ada", Email: "ada.alt@example.com"},
				{ID: "wsl_other", Email: "collector@example.com"},
			}, nil
		},
		markFn: func(context.Context, string) (bool, error) {
			flips++
			return true, nil
		},
	}
	svc := newTestNotificationService(t, mailer, wishlists, &stubSettingsRepo{})

	order := confirmedOrder()
	order.UserID = "usr_ada"
	svc.OrderConfirmed(context.Background(), order)

	if flips != 3 {
		t.Fatalf("buyer entries must still be settled, got %d flips", flips)
	}
	if len(mailer.wishlistSends) != 1 || mailer.wishlistSends[0] != "collector@example.com" {
		t.Fatalf("the buyer must not receive a sold notice for their own purchase, got %v", mailer.wishlistSends)
	}
}

func TestNotificationOrderShippedSurfacesError(t *testing.T) {
	mailer := &captureMailer{shipmentErr: errors.New("smtp down")}
	svc := newTestNotificationService(t, mailer, &stubWishlistRepo{}, &stubSettingsRepo{})

	if err := svc.OrderShipped(context.Background(), confirmedOrder()); err == nil {
		t.Fatalf("expected error to surface")
	}
	if len(mailer.shipments) != 1 {
		t.Fatalf("expected one shipment attempt")
	}
}
