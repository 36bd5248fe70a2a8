package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

func TestCatalogReads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.Equal(t, "Family Loaf", products[0].Name)

	ingredients, err := svc.ListIngredients(ctx)
	require.NoError(t, err)
	assert.Len(t, ingredients, 4)

	recipes, err := svc.ListRecipes(ctx)
	require.NoError(t, err)
	assert.Len(t, recipes, 2)

	customers, err := svc.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}

func TestListStaffHidesInactive(t *testing.T) {
	svc, st := newTestService(t)
	read(t, st, func(ctx context.Context, tx store.Tx) error {
		return tx.Directory().SaveStaff(ctx, domain.Staff{ID: "staff-former", Name: "Aaron Gone", Role: domain.RoleBaker})
	})

	staff, err := svc.ListStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, staff, 5)
	for _, s := range staff {
		assert.NotEqual(t, "staff-former", s.ID)
	}
	assert.Equal(t, "Adaeze Okafor", staff[0].Name)
}

func TestProductsForStaffJoinsPrices(t *testing.T) {
	svc, _ := newTestService(t)
	startRun(t, svc, item("bread-family", "Family Loaf", 12))

	held, err := svc.ProductsForStaff(context.Background(), driverActor.StaffID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, 12, held[0].Stock)
	assert.True(t, held[0].Price.Equal(decimal.NewFromInt(1200)))
	assert.True(t, held[0].CostPrice.Equal(decimal.NewFromInt(700)))

	none, err := svc.ProductsForStaff(context.Background(), bakerActor.StaffID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveProductKeepsStockOnUpdate(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.SaveProduct(as(storekeeperActor), domain.Product{Name: "Buns"})
	assertCode(t, err, apperror.CodeForbidden)

	_, err = svc.SaveProduct(as(managerActor), domain.Product{Name: " ", Price: decimal.NewFromInt(1)})
	assertCode(t, err, apperror.CodeValidation)

	created, err := svc.SaveProduct(as(managerActor), domain.Product{Name: "Buns", Category: "Bread", Price: decimal.NewFromInt(300), Stock: 15})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 15, centralStock(t, st, created.ID))

	created.Price = decimal.NewFromInt(350)
	created.Stock = 999
	updated, err := svc.SaveProduct(as(developerActor), created)
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Stock)
	assert.Equal(t, 15, centralStock(t, st, created.ID))

	_, err = svc.SaveProduct(as(managerActor), domain.Product{ID: "product-ghost", Name: "Ghost"})
	assertCode(t, err, apperror.CodeNotFound)
}

func TestSaveIngredientKeepsStockOnUpdate(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.SaveIngredient(as(bakerActor), domain.Ingredient{Name: "Salt", Unit: "kg"})
	assertCode(t, err, apperror.CodeForbidden)

	_, err = svc.SaveIngredient(as(managerActor), domain.Ingredient{Name: "Salt"})
	assertCode(t, err, apperror.CodeValidation)

	flour, err := svc.SaveIngredient(as(managerActor), domain.Ingredient{ID: "flour", Name: "Flour", Unit: "kg", Stock: dec("1"), CostPerUnit: dec("1100")})
	require.NoError(t, err)
	assert.True(t, flour.Stock.Equal(dec("50")))
	assert.True(t, ingredientStock(t, st, "flour").Equal(dec("50")))
}

func TestSaveAndDeleteRecipe(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.SaveRecipe(as(bakerActor), domain.Recipe{Name: "Mini Loaf"})
	assertCode(t, err, apperror.CodeForbidden)

	_, err = svc.SaveRecipe(as(managerActor), domain.Recipe{Name: "Mini Loaf", ProductID: "bread-mini"})
	assertCode(t, err, apperror.CodeValidation)

	_, err = svc.SaveRecipe(as(managerActor), domain.Recipe{
		Name:        "Mini Loaf",
		ProductID:   "bread-mini",
		Ingredients: []domain.RecipeIngredient{{IngredientID: "salt", Quantity: dec("1")}},
	})
	assertCode(t, err, apperror.CodeNotFound)

	recipe, err := svc.SaveRecipe(as(managerActor), domain.Recipe{
		Name:      "Mini Loaf",
		ProductID: "bread-mini",
		Ingredients: []domain.RecipeIngredient{
			{IngredientID: "flour", Quantity: dec("4")},
			{IngredientID: "yeast", Quantity: dec("40")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Mini Loaf", recipe.ProductName)
	assert.Equal(t, "Flour", recipe.Ingredients[0].IngredientName)
	assert.Equal(t, "g", recipe.Ingredients[1].Unit)

	// the new recipe drives production right away
	batch, err := svc.StartBatch(as(bakerActor), domain.StartBatchRequest{RecipeID: recipe.ID, QuantityToProduce: 20})
	require.NoError(t, err)
	assert.Equal(t, "bread-mini", batch.ProductID)

	require.NoError(t, svc.DeleteRecipe(as(developerActor), recipe.ID))
	assertCode(t, svc.DeleteRecipe(as(developerActor), recipe.ID), apperror.CodeNotFound)

	var actions []string
	read(t, st, func(ctx context.Context, tx store.Tx) error {
		logs, err := tx.Journal().ListProductionLogs(ctx)
		for _, l := range logs {
			actions = append(actions, l.Action)
		}
		return err
	})
	assert.Contains(t, actions, "Recipe Created")
	assert.Contains(t, actions, "Recipe Deleted")
}

func TestSaveStaff(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveStaff(as(managerActor), domain.Staff{Name: "Kemi", Role: "Chef"})
	assertCode(t, err, apperror.CodeValidation)

	kemi, err := svc.SaveStaff(as(managerActor), domain.Staff{Name: "Kemi Ade", Role: domain.RoleDelivery, IsActive: true})
	require.NoError(t, err)

	// new staff can receive transfers immediately
	_, err = svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: kemi.ID,
		Items:     []domain.TransferItem{item("bread-mini", "Mini Loaf", 2)},
	})
	require.NoError(t, err)

	_, err = svc.SaveStaff(as(driverActor), domain.Staff{Name: "Self Promoted", Role: domain.RoleManager})
	assertCode(t, err, apperror.CodeForbidden)
}

func TestSaveCustomerPreservesBalances(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.SaveCustomer(context.Background(), domain.Customer{Name: "Nobody"})
	assertCode(t, err, apperror.CodeUnauthorized)

	_, err = svc.SaveCustomer(as(driverActor), domain.Customer{ID: domain.WalkInCustomerID, Name: "Walk-in"})
	assertCode(t, err, apperror.CodeValidation)

	fresh, err := svc.SaveCustomer(as(driverActor), domain.Customer{Name: "Iya Basira", AmountOwed: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.True(t, fresh.AmountOwed.IsZero())

	read(t, st, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.Sales().GetCustomer(ctx, "cust-mama-t")
		if err != nil {
			return err
		}
		c.AmountOwed = decimal.NewFromInt(800)
		return tx.Sales().SaveCustomer(ctx, *c)
	})
	edited, err := svc.SaveCustomer(as(driverActor), domain.Customer{ID: "cust-mama-t", Name: "Mama T Stores", Phone: "0803"})
	require.NoError(t, err)
	assert.True(t, edited.AmountOwed.Equal(decimal.NewFromInt(800)))
	assert.Equal(t, "Mama T Stores", customerByID(t, st, "cust-mama-t").Name)
}
