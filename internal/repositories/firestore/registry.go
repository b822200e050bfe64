package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/maison-curio/api/internal/platform/firestore"
	"github.com/maison-curio/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract consumed by the service container.
type Registry struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	products  *ProductRepository
	wishlists *WishlistRepository
	settings  *SettingsRepository
	health    repositories.HealthRepository
}

// NewRegistry constructs the repository set over a shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	if health == nil {
		return nil, errors.New("registry requires health repository")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	settings, err := NewSettingsRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		orders:    orders,
		products:  products,
		wishlists: wishlists,
		settings:  settings,
		health:    health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) Products() repositories.ProductRepository { return r.products }

func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }

func (r *Registry) Settings() repositories.SettingsRepository { return r.settings }

func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)
