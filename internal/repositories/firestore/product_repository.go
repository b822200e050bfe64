package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/maison-curio/api/internal/domain"
	pfirestore "github.com/maison-curio/api/internal/platform/firestore"
	"github.com/maison-curio/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads catalog slices and owns the transactional
// sale-state transitions for one-of-a-kind pieces.
type ProductRepository struct {
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{provider: provider}, nil
}

// FindByIDs fetches the requested products. Missing identifiers are simply
// absent from the result; the caller decides whether that is a problem.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			refs = append(refs, client.Collection(productCollection).Doc(trimmed))
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.get_all", err)
	}

	products := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		product, err := decodeProductSnapshot(snap)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

// MarkSold performs the compare-and-set from any non-sold status to sold
// inside a transaction. It returns false when the piece was already sold.
func (r *ProductRepository) MarkSold(ctx context.Context, productID string, soldAt time.Time) (bool, error) {
	client, err := r.client(ctx)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("product repository: product id is required")
	}

	transitioned := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := client.Collection(productCollection).Doc(productID)
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		if domain.ProductStatus(doc.Status) == domain.ProductStatusSold {
			transitioned = false
			return nil
		}
		transitioned = true
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(domain.ProductStatusSold)},
			{Path: "soldAt", Value: soldAt.UTC()},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, pfirestore.WrapError("products.mark_sold", err)
	}
	return transitioned, nil
}

// ReleaseSold returns a sold piece to available and clears soldAt. A piece
// that is not currently sold is left untouched.
func (r *ProductRepository) ReleaseSold(ctx context.Context, productID string) (bool, error) {
	client, err := r.client(ctx)
	if err != nil {
		return false, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, errors.New("product repository: product id is required")
	}

	released := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := client.Collection(productCollection).Doc(productID)
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		if domain.ProductStatus(doc.Status) != domain.ProductStatusSold {
			released = false
			return nil
		}
		released = true
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(domain.ProductStatusAvailable)},
			{Path: "soldAt", Value: firestore.Delete},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return false, pfirestore.WrapError("products.release_sold", err)
	}
	return released, nil
}

func (r *ProductRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	return r.provider.Client(ctx)
}

type productDocument struct {
	Title                   string            `firestore:"title"`
	Slug                    string            `firestore:"slug,omitempty"`
	Price                   int64             `firestore:"price"`
	Status                  string            `firestore:"status"`
	SoldAt                  *time.Time        `firestore:"soldAt,omitempty"`
	ShippingCost            *int64            `firestore:"shippingCost,omitempty"`
	ShippingCostIntl        *int64            `firestore:"shippingCostIntl,omitempty"`
	RequiresSpecialShipping bool              `firestore:"requiresSpecialShipping,omitempty"`
	ShippingNote            string            `firestore:"shippingNote,omitempty"`
	ShippingNoteLocalized   map[string]string `firestore:"shippingNoteLocalized,omitempty"`
	CreatedAt               time.Time         `firestore:"createdAt"`
	UpdatedAt               time.Time         `firestore:"updatedAt"`
}

func decodeProductSnapshot(snap *firestore.DocumentSnapshot) (domain.Product, error) {
	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
	}
	return domain.Product{
		ID:                      snap.Ref.ID,
		Title:                   doc.Title,
		Slug:                    doc.Slug,
		Price:                   doc.Price,
		Status:                  domain.ProductStatus(doc.Status),
		SoldAt:                  doc.SoldAt,
		ShippingCost:            doc.ShippingCost,
		ShippingCostIntl:        doc.ShippingCostIntl,
		RequiresSpecialShipping: doc.RequiresSpecialShipping,
		ShippingNote:            doc.ShippingNote,
		ShippingNoteLocalized:   doc.ShippingNoteLocalized,
		CreatedAt:               doc.CreatedAt,
		UpdatedAt:               doc.UpdatedAt,
	}, nil
}

// Ensure interface compliance.
var _ repositories.ProductRepository = (*ProductRepository)(nil)
