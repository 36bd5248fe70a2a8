package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/domain"
)

// LoadCatalogIfEmpty writes the demo catalog into a store that holds no
// staff yet. It reports whether anything was written.
func LoadCatalogIfEmpty(ctx context.Context, s Store) (bool, error) {
	loaded := false
	err := s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		loaded = false
		staff, err := tx.Directory().ListStaff(ctx)
		if err != nil {
			return err
		}
		if len(staff) > 0 {
			return nil
		}
		loaded = true
		return SeedCatalog(ctx, tx)
	})
	return loaded, err
}

// EnsureStaff saves staff unless a record with the same id exists.
func EnsureStaff(ctx context.Context, s Store, staff domain.Staff) error {
	if staff.ID == "" || staff.Name == "" {
		return ErrInvalidInput
	}
	return s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.Directory().GetStaff(ctx, staff.ID)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return tx.Directory().SaveStaff(ctx, staff)
	})
}

// SeedCatalog writes the demo bakery: staff, products, ingredients, recipes,
// customers and a supplier.
func SeedCatalog(ctx context.Context, tx Tx) error {
	staff := []domain.Staff{
		{ID: "staff-manager", Name: "Adaeze Okafor", Role: domain.RoleManager, IsActive: true},
		{ID: "staff-storekeeper", Name: "Tunde Bakare", Role: domain.RoleStorekeeper, IsActive: true},
		{ID: "staff-baker", Name: "Ngozi Eze", Role: domain.RoleBaker, IsActive: true},
		{ID: "staff-driver", Name: "Musa Bello", Role: domain.RoleDelivery, IsActive: true},
		{ID: "staff-showroom", Name: "Funke Adeyemi", Role: domain.RoleShowroom, IsActive: true},
	}
	for _, st := range staff {
		if err := tx.Directory().SaveStaff(ctx, st); err != nil {
			return err
		}
	}

	products := []domain.Product{
		{ID: "bread-family", Name: "Family Loaf", Category: "Bread", Price: decimal.NewFromInt(1200), CostPrice: decimal.NewFromInt(700), Stock: 100, Unit: "loaf"},
		{ID: "bread-sliced", Name: "Sliced Bread", Category: "Bread", Price: decimal.NewFromInt(900), CostPrice: decimal.NewFromInt(500), Stock: 60, Unit: "loaf"},
		{ID: "bread-mini", Name: "Mini Loaf", Category: "Bread", Price: decimal.NewFromInt(500), CostPrice: decimal.NewFromInt(250), Stock: 40, Unit: "loaf"},
		{ID: "drink-water", Name: "Table Water", Category: "Drinks", Price: decimal.NewFromInt(200), CostPrice: decimal.NewFromInt(120), Stock: 200, Unit: "bottle"},
	}
	for _, p := range products {
		if err := tx.Stock().SaveProduct(ctx, p); err != nil {
			return err
		}
	}

	ingredients := []domain.Ingredient{
		{ID: "flour", Name: "Flour", Unit: "kg", Stock: decimal.NewFromInt(50), CostPerUnit: decimal.NewFromInt(1000)},
		{ID: "sugar", Name: "Sugar", Unit: "kg", Stock: decimal.NewFromInt(20), CostPerUnit: decimal.NewFromInt(900)},
		{ID: "yeast", Name: "Yeast", Unit: "g", Stock: decimal.NewFromInt(500), CostPerUnit: decimal.NewFromInt(5)},
		{ID: "butter", Name: "Butter", Unit: "kg", Stock: decimal.NewFromInt(10), CostPerUnit: decimal.NewFromInt(3000)},
	}
	for _, ing := range ingredients {
		if err := tx.Stock().SaveIngredient(ctx, ing); err != nil {
			return err
		}
	}

	recipes := []domain.Recipe{
		{
			ID: "recipe-family", Name: "Family Loaf", ProductID: "bread-family", ProductName: "Family Loaf",
			Ingredients: []domain.RecipeIngredient{
				{IngredientID: "flour", IngredientName: "Flour", Quantity: decimal.NewFromInt(10), Unit: "kg"},
				{IngredientID: "sugar", IngredientName: "Sugar", Quantity: decimal.NewFromInt(2), Unit: "kg"},
				{IngredientID: "yeast", IngredientName: "Yeast", Quantity: decimal.NewFromInt(100), Unit: "g"},
			},
		},
		{
			ID: "recipe-sliced", Name: "Sliced Bread", ProductID: "bread-sliced", ProductName: "Sliced Bread",
			Ingredients: []domain.RecipeIngredient{
				{IngredientID: "flour", IngredientName: "Flour", Quantity: decimal.NewFromInt(8), Unit: "kg"},
				{IngredientID: "butter", IngredientName: "Butter", Quantity: decimal.NewFromInt(2), Unit: "kg"},
				{IngredientID: "yeast", IngredientName: "Yeast", Quantity: decimal.NewFromInt(80), Unit: "g"},
			},
		},
	}
	for _, r := range recipes {
		if err := tx.Directory().SaveRecipe(ctx, r); err != nil {
			return err
		}
	}

	customers := []domain.Customer{
		{ID: "cust-mama-t", Name: "Mama T Provisions", Phone: "08030000001"},
		{ID: "cust-corner-shop", Name: "Corner Shop", Phone: "08030000002"},
	}
	for _, c := range customers {
		if err := tx.Sales().SaveCustomer(ctx, c); err != nil {
			return err
		}
	}

	return tx.Procurement().SaveSupplier(ctx, domain.Supplier{ID: "sup-millers", Name: "Golden Millers", Contact: "08030000100"})
}
