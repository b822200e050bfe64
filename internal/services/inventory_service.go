package services

import (
	"context"
	"errors"
	"time"

	"github.com/maison-curio/api/internal/repositories"
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewInventoryService validates dependencies and returns an InventoryService.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service requires product repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryService{
		products: deps.Products,
		logger:   logger,
	}, nil
}

// MarkItemsSold flips each product to sold. A piece that is already sold is a
// double-sale signal; it is recorded in the result and logged, never fatal.
func (s *inventoryService) MarkItemsSold(ctx context.Context, productIDs []string, soldAt time.Time) InventoryMarkResult {
	result := InventoryMarkResult{}
	for _, productID := range productIDs {
		transitioned, err := s.products.MarkSold(ctx, productID, soldAt)
		if err != nil {
			if isRepositoryNotFound(err) {
				result.Missing = append(result.Missing, productID)
				s.logger(ctx, "inventory.mark_sold.missing", map[string]any{"productId": productID})
				continue
			}
			s.logger(ctx, "inventory.mark_sold.failed", map[string]any{
				"productId": productID,
				"error":     err.Error(),
			})
			continue
		}
		if !transitioned {
			result.AlreadySold = append(result.AlreadySold, productID)
			s.logger(ctx, "inventory.mark_sold.already_sold", map[string]any{"productId": productID})
			continue
		}
		result.Sold = append(result.Sold, productID)
	}
	return result
}

// ReleaseItems returns sold pieces to available, typically after a failed
// payment. Pieces not currently sold are skipped.
func (s *inventoryService) ReleaseItems(ctx context.Context, productIDs []string) InventoryReleaseResult {
	result := InventoryReleaseResult{}
	for _, productID := range productIDs {
		released, err := s.products.ReleaseSold(ctx, productID)
		if err != nil {
			if isRepositoryNotFound(err) {
				result.Missing = append(result.Missing, productID)
				s.logger(ctx, "inventory.release.missing", map[string]any{"productId": productID})
				continue
			}
			s.logger(ctx, "inventory.release.failed", map[string]any{
				"productId": productID,
				"error":     err.Error(),
			})
			continue
		}
		if !released {
			result.Skipped = append(result.Skipped, productID)
			continue
		}
		result.Released = append(result.Released, productID)
	}
	return result
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
