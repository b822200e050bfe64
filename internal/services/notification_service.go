package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maison-curio/api/internal/repositories"
)

// NotificationServiceDeps bundles the collaborators for the notification service.
type NotificationServiceDeps struct {
	Mailer    Mailer
	Wishlists repositories.WishlistRepository
	Settings  repositories.SettingsRepository
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	mailer    Mailer
	wishlists repositories.WishlistRepository
	settings  repositories.SettingsRepository
	logger    func(context.Context, string, map[string]any)
}

// NewNotificationService validates dependencies and returns a NotificationService.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Mailer == nil {
		return nil, errors.New("notification service requires mailer")
	}
	if deps.Wishlists == nil {
		return nil, errors.New("notification service requires wishlist repository")
	}
	if deps.Settings == nil {
		return nil, errors.New("notification service requires settings repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &notificationService{
		mailer:    deps.Mailer,
		wishlists: deps.Wishlists,
		settings:  deps.Settings,
		logger:    logger,
	}, nil
}

// OrderConfirmed fans out the post-purchase emails. Each dispatch is isolated:
// one failing email never blocks the others, and none of them fail the order.
func (s *notificationService) OrderConfirmed(ctx context.Context, order Order) {
	if err := s.mailer.SendOrderConfirmation(ctx, order); err != nil {
		s.logger(ctx, "notifications.confirmation.failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}

	s.notifyAdmin(ctx, order)

	for _, item := range order.Items {
		s.notifyWishlisters(ctx, order, item)
	}
}

// OrderShipped dispatches the shipment notice. The error is surfaced so
// operator-triggered resends can report the outcome.
func (s *notificationService) OrderShipped(ctx context.Context, order Order) error {
	if err := s.mailer.SendShipmentNotice(ctx, order); err != nil {
		return fmt.Errorf("send shipment notice for order %s: %w", order.ID, err)
	}
	return nil
}

func (s *notificationService) notifyAdmin(ctx context.Context, order Order) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		s.logger(ctx, "notifications.admin.settings_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return
	}
	adminEmail := strings.TrimSpace(settings.AdminEmail)
	if adminEmail == "" {
		return
	}
	if err := s.mailer.SendAdminNewOrder(ctx, order, adminEmail); err != nil {
		s.logger(ctx, "notifications.admin.failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

// notifyWishlisters sends at most one sold notice per wishlist entry. The
// notifiedSold flag is flipped before sending, so a crash after the flip
// loses an email rather than risking duplicates. The buyer's own entry is
// flipped but never mailed; they get the order confirmation instead.
func (s *notificationService) notifyWishlisters(ctx context.Context, order Order, item OrderItem) {
	if item.ProductID == "" {
		return
	}
	entries, err := s.wishlists.ListPendingSoldNotifications(ctx, item.ProductID)
	if err != nil {
		s.logger(ctx, "notifications.wishlist.list_failed", map[string]any{
			"productId": item.ProductID,
			"error":     err.Error(),
		})
		return
	}
	buyerEmail := strings.TrimSpace(order.Customer.Email)
	for _, entry := range entries {
		flipped, err := s.wishlists.MarkSoldNotified(ctx, entry.ID)
		if err != nil {
			s.logger(ctx, "notifications.wishlist.mark_failed", map[string]any{
				"wishlistItemId": entry.ID,
				"error":          err.Error(),
			})
			continue
		}
		if !flipped {
			continue
		}
		if entry.UserID != "" && entry.UserID == order.UserID {
			continue
		}
		if buyerEmail != "" && strings.EqualFold(strings.TrimSpace(entry.Email), buyerEmail) {
			continue
		}
		if err := s.mailer.SendWishlistSold(ctx, entry.Email, item); err != nil {
			s.logger(ctx, "notifications.wishlist.send_failed", map[string]any{
				"wishlistItemId": entry.ID,
				"error":          err.Error(),
			})
		}
	}
}
