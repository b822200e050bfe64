package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maison-curio/api/internal/payments"
	"github.com/maison-curio/api/internal/platform/config"
	"github.com/maison-curio/api/internal/repositories"
	"github.com/maison-curio/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Shipping      services.ShippingService
	Inventory     services.InventoryService
	Orders        services.OrderService
	PaymentEvents services.PaymentEventService
	Notifications services.NotificationService
}

// Infrastructure carries the externally-constructed collaborators (payment
// provider client, queue publishers, logging) the services depend on.
type Infrastructure struct {
	Sessions    payments.SessionFetcher
	Mailer      services.Mailer
	OrderEvents services.OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries and stub infrastructure.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, _ config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Products: reg.Products(),
		Settings: reg.Settings(),
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	svc.Shipping = shippingSvc

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: reg.Products(),
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	if infra.Mailer == nil {
		return Services{}, errors.New("build notification service: mailer is required")
	}
	notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
		Mailer:    infra.Mailer,
		Wishlists: reg.Wishlists(),
		Settings:  reg.Settings(),
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification service: %w", err)
	}
	svc.Notifications = notificationSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Notifier: notificationSvc,
		Clock:    time.Now,
		Events:   infra.OrderEvents,
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if infra.Sessions == nil {
		return Services{}, errors.New("build payment event service: session fetcher is required")
	}
	paymentEventSvc, err := services.NewPaymentEventService(services.PaymentEventServiceDeps{
		Orders:    orderSvc,
		Inventory: inventorySvc,
		Notifier:  notificationSvc,
		Sessions:  infra.Sessions,
		Products:  reg.Products(),
		Clock:     time.Now,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment event service: %w", err)
	}
	svc.PaymentEvents = paymentEventSvc

	return svc, nil
}
