package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestInventoryService(t *testing.T, products *stubProductRepo) InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{Products: products})
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	return svc
}

func TestInventoryMarkItemsSoldPartitionsOutcomes(t *testing.T) {
	soldAt := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	products := &stubProductRepo{
		markFn: func(_ context.Context, productID string, at time.Time) (bool, error) {
			if !at.Equal(soldAt) {
				t.Fatalf("unexpected soldAt %v", at)
			}
			switch productID {
			case "prd_fresh":
				return true, nil
			case "prd_taken":
				return false, nil
			case "prd_gone":
				return false, testRepoError{notFound: true}
			default:
				return false, errors.New("unexpected product " + productID)
			}
		},
	}
	svc := newTestInventoryService(t, products)

	result := svc.MarkItemsSold(context.Background(), []string{"prd_fresh", "prd_taken", "prd_gone"}, soldAt)

	if !reflect.DeepEqual(result.Sold, []string{"prd_fresh"}) {
		t.Fatalf("unexpected sold set %v", result.Sold)
	}
	if !reflect.DeepEqual(result.AlreadySold, []string{"prd_taken"}) {
		t.Fatalf("unexpected already-sold set %v", result.AlreadySold)
	}
	if !reflect.DeepEqual(result.Missing, []string{"prd_gone"}) {
		t.Fatalf("unexpected missing set %v", result.Missing)
	}
}

func TestInventoryMarkItemsSoldSurvivesRepositoryFailure(t *testing.T) {
	calls := 0
	products := &stubProductRepo{
		markFn: func(_ context.Context, productID string, _ time.Time) (bool, error) {
			calls++
			if productID == "prd_flaky" {
				return false, testRepoError{unavailable: true}
			}
			return true, nil
		},
	}
	svc := newTestInventoryService(t, products)

	result := svc.MarkItemsSold(context.Background(), []string{"prd_flaky", "prd_ok"}, time.Now())

	if calls != 2 {
		t.Fatalf("the sweep must continue past failures, got %d calls", calls)
	}
	if !reflect.DeepEqual(result.Sold, []string{"prd_ok"}) {
		t.Fatalf("unexpected sold set %v", result.Sold)
	}
}

func TestInventoryReleaseItems(t *testing.T) {
	products := &stubProductRepo{
		releaseFn: func(_ context.Context, productID string) (bool, error) {
			switch productID {
			case "prd_sold":
				return true, nil
			case "prd_available":
				return false, nil
			default:
				return false, testRepoError{notFound: true}
			}
		},
	}
	svc := newTestInventoryService(t, products)

	result := svc.ReleaseItems(context.Background(), []string{"prd_sold", "prd_available", "prd_gone"})

	if !reflect.DeepEqual(result.Released, []string{"prd_sold"}) {
		t.Fatalf("unexpected released set %v", result.Released)
	}
	if !reflect.DeepEqual(result.Skipped, []string{"prd_available"}) {
		t.Fatalf("unexpected skipped set %v", result.Skipped)
	}
	if !reflect.DeepEqual(result.Missing, []string{"prd_gone"}) {
		t.Fatalf("unexpected missing set %v", result.Missing)
	}
}
