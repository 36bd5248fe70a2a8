package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

func getProduct(t *testing.T, s *Store, id string) domain.Product {
	t.Helper()
	var out domain.Product
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, id)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestReadYourWritesInsideTransaction(t *testing.T) {
	s := NewCatalog()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, "bread-family")
		require.NoError(t, err)
		p.Stock = 7
		require.NoError(t, tx.Stock().SaveProduct(ctx, *p))

		again, err := tx.Stock().GetProduct(ctx, "bread-family")
		require.NoError(t, err)
		assert.Equal(t, 7, again.Stock)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, getProduct(t, s, "bread-family").Stock)
}

func TestFailedTransactionDiscardsWrites(t *testing.T) {
	s := NewCatalog()
	boom := errors.New("boom")
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, "bread-family")
		require.NoError(t, err)
		p.Stock = 0
		require.NoError(t, tx.Stock().SaveProduct(ctx, *p))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 100, getProduct(t, s, "bread-family").Stock)
}

func TestConflictReExecutesBody(t *testing.T) {
	s := NewCatalog()
	attempts := 0
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		attempts++
		p, err := tx.Stock().GetProduct(ctx, "bread-family")
		if err != nil {
			return err
		}
		if attempts == 1 {
			// A competing writer commits between our read and our commit.
			require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, other store.Tx) error {
				q, err := other.Stock().GetProduct(ctx, "bread-family")
				if err != nil {
					return err
				}
				q.Stock -= 10
				return other.Stock().SaveProduct(ctx, *q)
			}))
		}
		p.Stock -= 5
		return tx.Stock().SaveProduct(ctx, *p)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 85, getProduct(t, s, "bread-family").Stock)
}

func TestConflictExhaustionIsTransient(t *testing.T) {
	s := NewCatalog()
	s.maxAttempts = 2
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, "bread-mini")
		if err != nil {
			return err
		}
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, other store.Tx) error {
			q, err := other.Stock().GetProduct(ctx, "bread-mini")
			if err != nil {
				return err
			}
			q.Stock++
			return other.Stock().SaveProduct(ctx, *q)
		}))
		p.Stock = 0
		return tx.Stock().SaveProduct(ctx, *p)
	})
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.Equal(t, 42, getProduct(t, s, "bread-mini").Stock)
}

func TestQueryConflictsWithConcurrentInsert(t *testing.T) {
	s := NewCatalog()
	attempts := 0
	var seen int
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		attempts++
		orders, err := tx.Sales().ListOrdersByRun(ctx, "run-1")
		if err != nil {
			return err
		}
		seen = len(orders)
		if attempts == 1 {
			require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, other store.Tx) error {
				return other.Sales().SaveOrder(ctx, domain.Order{ID: "order-1", SalesRunID: "run-1"})
			}))
		}
		return tx.Sales().SaveOrder(ctx, domain.Order{ID: "order-2", SalesRunID: "run-2"})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 1, seen)
}

func TestDeleteAndQueryFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, c := range []domain.PaymentConfirmation{
			{ID: "c1", RunID: "run-1", Status: domain.ConfirmationPending},
			{ID: "c2", RunID: "run-1", Status: domain.ConfirmationApproved},
			{ID: "c3", RunID: "run-2", Status: domain.ConfirmationPending},
		} {
			if err := tx.Sales().SaveConfirmation(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		pending, err := tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{RunID: "run-1", Status: domain.ConfirmationPending})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "c1", pending[0].ID)

		require.NoError(t, tx.Sales().DeleteConfirmation(ctx, "c1"))
		_, err = tx.Sales().GetConfirmation(ctx, "c1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		all, err := tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{RunID: "run-1"})
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	}))
}

func TestPersonalStockIsScopedPerStaff(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Stock().SavePersonalStock(ctx, "staff-a", domain.PersonalStock{ProductID: "p1", ProductName: "P1", Stock: 3})
	}))
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Stock().GetPersonalStock(ctx, "staff-b", "p1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		ps, err := tx.Stock().GetPersonalStock(ctx, "staff-a", "p1")
		require.NoError(t, err)
		assert.Equal(t, 3, ps.Stock)
		return nil
	}))
}

func TestConcurrentDecrementsAreSerialized(t *testing.T) {
	s := NewCatalog()
	var wg sync.WaitGroup
	var failed atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				p, err := tx.Stock().GetProduct(ctx, "bread-family")
				if err != nil {
					return err
				}
				p.Stock--
				return tx.Stock().SaveProduct(ctx, *p)
			})
			if err != nil {
				failed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100-10+int(failed.Load()), getProduct(t, s, "bread-family").Stock)
}

func TestUserDirectory(t *testing.T) {
	s := New()
	users := store.NewUserDirectory(s)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, domain.UserAccount{Username: " Baker ", Password: "hash", Role: domain.RoleBaker}))
	assert.ErrorIs(t, users.CreateUser(ctx, domain.UserAccount{Username: "baker", Password: "x"}), store.ErrAlreadyExists)
	assert.ErrorIs(t, users.CreateUser(ctx, domain.UserAccount{Username: "", Password: "x"}), store.ErrInvalidInput)

	require.NoError(t, users.UpdateUserPassword(ctx, "BAKER", "new-hash"))
	assert.ErrorIs(t, users.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "baker", list[0].Username)
	assert.Equal(t, "new-hash", list[0].Password)
	assert.True(t, list[0].Active)
}

func TestLoadCatalogIfEmpty(t *testing.T) {
	s := New()
	ctx := context.Background()

	loaded, err := store.LoadCatalogIfEmpty(ctx, s)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, 100, getProduct(t, s, "bread-family").Stock)

	// a second load leaves existing documents alone
	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.Stock().GetProduct(ctx, "bread-family")
		if err != nil {
			return err
		}
		p.Stock = 7
		return tx.Stock().SaveProduct(ctx, *p)
	}))
	loaded, err = store.LoadCatalogIfEmpty(ctx, s)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 7, getProduct(t, s, "bread-family").Stock)
}

func TestEnsureStaffKeepsExistingRecord(t *testing.T) {
	s := NewCatalog()
	ctx := context.Background()

	require.NoError(t, store.EnsureStaff(ctx, s, domain.Staff{ID: "staff-manager", Name: "Someone Else", Role: domain.RoleBaker}))
	require.NoError(t, store.EnsureStaff(ctx, s, domain.Staff{ID: "staff-admin", Name: "Administrator", Role: domain.RoleManager, IsActive: true}))
	assert.ErrorIs(t, store.EnsureStaff(ctx, s, domain.Staff{ID: "staff-nameless"}), store.ErrInvalidInput)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		manager, err := tx.Directory().GetStaff(ctx, "staff-manager")
		if err != nil {
			return err
		}
		assert.Equal(t, "Adaeze Okafor", manager.Name)
		admin, err := tx.Directory().GetStaff(ctx, "staff-admin")
		if err != nil {
			return err
		}
		assert.Equal(t, domain.RoleManager, admin.Role)
		return nil
	})
	require.NoError(t, err)
}

func TestRecipeAndCustomerListing(t *testing.T) {
	s := NewCatalog()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		recipes, err := tx.Directory().ListRecipes(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, recipes, 2)
		customers, err := tx.Sales().ListCustomers(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, customers, 2)
		return tx.Directory().DeleteRecipe(ctx, "recipe-sliced")
	})
	require.NoError(t, err)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Directory().GetRecipe(ctx, "recipe-sliced")
		assert.ErrorIs(t, err, store.ErrNotFound)
		recipes, err := tx.Directory().ListRecipes(ctx)
		assert.Len(t, recipes, 1)
		return err
	})
	require.NoError(t, err)
}
