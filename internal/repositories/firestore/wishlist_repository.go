package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/maison-curio/api/internal/domain"
	pfirestore "github.com/maison-curio/api/internal/platform/firestore"
	"github.com/maison-curio/api/internal/repositories"
)

const wishlistCollection = "wishlistItems"

// WishlistRepository serves sold-notification candidates and guards the
// at-most-once notifiedSold flag.
type WishlistRepository struct {
	provider *pfirestore.Provider
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{provider: provider}, nil
}

// ListPendingSoldNotifications returns wishlist entries for the product that
// opted into sale notices and have not been notified yet.
func (r *WishlistRepository) ListPendingSoldNotifications(ctx context.Context, productID string) ([]domain.WishlistItem, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errors.New("wishlist repository: product id is required")
	}

	iter := client.Collection(wishlistCollection).
		Where("productId", "==", productID).
		Where("notifyOnSale", "==", true).
		Where("notifiedSold", "==", false).
		Documents(ctx)
	defer iter.Stop()

	var items []domain.WishlistItem
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("wishlists.list_pending", err)
		}
		item, err := decodeWishlistSnapshot(snap)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// MarkSoldNotified flips notifiedSold false → true inside a transaction and
// reports whether this call performed the flip.
func (r *WishlistRepository) MarkSoldNotified(ctx context.Context, itemID string) (bool, error) {
	client, err := r.client(ctx)
	if err != nil {
		return false, err
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return false, errors.New("wishlist repository: item id is required")
	}

	flipped := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := client.Collection(wishlistCollection).Doc(itemID)
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc wishlistDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode wishlist item %s: %w", itemID, err)
		}
		if doc.NotifiedSold {
			flipped = false
			return nil
		}
		flipped = true
		return tx.Update(ref, []firestore.Update{
			{Path: "notifiedSold", Value: true},
		})
	})
	if err != nil {
		return false, pfirestore.WrapError("wishlists.mark_notified", err)
	}
	return flipped, nil
}

func (r *WishlistRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("wishlist repository not initialised")
	}
	return r.provider.Client(ctx)
}

type wishlistDocument struct {
	UserID       string    `firestore:"userId,omitempty"`
	Email        string    `firestore:"email"`
	ProductID    string    `firestore:"productId"`
	NotifyOnSale bool      `firestore:"notifyOnSale"`
	NotifiedSold bool      `firestore:"notifiedSold"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func decodeWishlistSnapshot(snap *firestore.DocumentSnapshot) (domain.WishlistItem, error) {
	var doc wishlistDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.WishlistItem{}, fmt.Errorf("decode wishlist item %s: %w", snap.Ref.ID, err)
	}
	return domain.WishlistItem{
		ID:           snap.Ref.ID,
		UserID:       doc.UserID,
		Email:        doc.Email,
		ProductID:    doc.ProductID,
		NotifyOnSale: doc.NotifyOnSale,
		NotifiedSold: doc.NotifiedSold,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// Ensure interface compliance.
var _ repositories.WishlistRepository = (*WishlistRepository)(nil)
