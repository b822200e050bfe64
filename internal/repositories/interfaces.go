package repositories

import (
	"context"
	"time"

	domain "github.com/maison-curio/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Wishlists() WishlistRepository
	Settings() SettingsRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order aggregates. Insert must enforce uniqueness
// of both the payment session identifier and the order number at the storage
// level, reporting violations as conflicts.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentSessionID(ctx context.Context, sessionID string) (domain.Order, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
}

// ProductRepository reads catalog slices and performs the atomic sale-state
// transitions the ledger relies on.
type ProductRepository interface {
	FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error)
	// MarkSold flips the product to sold iff it is not already sold.
	// It reports whether this call performed the transition.
	MarkSold(ctx context.Context, productID string, soldAt time.Time) (bool, error)
	// ReleaseSold returns a sold product to available and clears soldAt.
	// Releasing a product that is not sold is a no-op.
	ReleaseSold(ctx context.Context, productID string) (bool, error)
}

// WishlistRepository serves sale-notification candidates and their
// at-most-once delivery flag.
type WishlistRepository interface {
	ListPendingSoldNotifications(ctx context.Context, productID string) ([]domain.WishlistItem, error)
	// MarkSoldNotified flips notifiedSold iff it is still false and reports
	// whether this call won the flip.
	MarkSoldNotified(ctx context.Context, itemID string) (bool, error)
}

// SettingsRepository loads the operator-managed storefront settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.SiteSettings, error)
}

// HealthRepository reports backend connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
