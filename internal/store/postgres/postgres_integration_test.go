package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("BMS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BMS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, 10)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestDocumentsRoundTripAndFilter(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	runID := fmt.Sprintf("run-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND data ->> 'runId' = $2`, store.CollPaymentConfirmation, runID)
	})

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for i, status := range []domain.ConfirmationStatus{domain.ConfirmationPending, domain.ConfirmationApproved} {
			if err := tx.Sales().SaveConfirmation(ctx, domain.PaymentConfirmation{
				ID:     fmt.Sprintf("%s-c%d", runID, i),
				RunID:  runID,
				Status: status,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("save confirmations: %v", err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pending, err := tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{RunID: runID, Status: domain.ConfirmationPending})
		if err != nil {
			return err
		}
		if len(pending) != 1 || pending[0].ID != runID+"-c0" {
			t.Fatalf("expected one pending confirmation, got %+v", pending)
		}
		if err := tx.Sales().DeleteConfirmation(ctx, runID+"-c0"); err != nil {
			return err
		}
		_, err = tx.Sales().GetConfirmation(ctx, runID+"-c0")
		if err != store.ErrNotFound {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("query confirmations: %v", err)
	}
}

func TestConcurrentIncrementsAreSerialized(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	productID := fmt.Sprintf("product-it-%d", time.Now().UnixNano())

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, store.CollProducts, productID)
	})

	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Stock().SaveProduct(ctx, domain.Product{ID: productID, Name: "Integration Loaf", Stock: 0})
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				p, err := tx.Stock().GetProduct(ctx, productID)
				if err != nil {
					return err
				}
				p.Stock++
				return tx.Stock().SaveProduct(ctx, *p)
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}

	var got int
	if err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		got = p.Stock
		return nil
	}); err != nil {
		t.Fatalf("read product: %v", err)
	}
	if got != succeeded {
		t.Fatalf("expected stock %d to equal successful increments %d", got, succeeded)
	}
}
