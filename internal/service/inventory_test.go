package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

func TestCentralRolesWasteFromMainInventory(t *testing.T) {
	svc, st := newTestService(t)

	err := svc.ReportWaste(as(storekeeperActor), domain.ReportWasteRequest{
		Items: []domain.WasteItem{{ProductID: "bread-family", ProductName: "Family Loaf", Quantity: 5}},
	})
	assertCode(t, err, apperror.CodeValidation)
	assert.Equal(t, "Please provide items and a reason for the waste.", apperror.Message(err))

	require.NoError(t, svc.ReportWaste(as(storekeeperActor), domain.ReportWasteRequest{
		Items:  []domain.WasteItem{{ProductID: "bread-family", ProductName: "Family Loaf", Quantity: 5}},
		Reason: "Expired",
		Notes:  "mould on shelf 2",
	}))
	assert.Equal(t, 95, centralStock(t, st, "bread-family"))

	logs, err := svc.ListWasteLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Bread", logs[0].ProductCategory)
	assert.Equal(t, "Tunde Bakare", logs[0].StaffName)

	err = svc.ReportWaste(as(storekeeperActor), domain.ReportWasteRequest{
		Items:  []domain.WasteItem{{ProductID: "cake-ghost", ProductName: "Ghost Cake", Quantity: 1}},
		Reason: "Damaged",
	})
	assertCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, "Product with ID cake-ghost not found in relevant inventory.", apperror.Message(err))
}

func TestStaffWasteFromPersonalStockIsAllOrNothing(t *testing.T) {
	svc, st := newTestService(t)
	startRun(t, svc, item("bread-family", "Family Loaf", 10), item("bread-mini", "Mini Loaf", 2))

	err := svc.ReportWaste(as(driverActor), domain.ReportWasteRequest{
		Items: []domain.WasteItem{
			{ProductID: "bread-family", ProductName: "Family Loaf", Quantity: 4},
			{ProductID: "bread-mini", ProductName: "Mini Loaf", Quantity: 3},
		},
		Reason: "Damaged",
	})
	assertCode(t, err, apperror.CodeInsufficientStock)
	assert.Equal(t, "Not enough stock for Mini Loaf in your inventory.", apperror.Message(err))
	assert.Equal(t, 10, personalStock(t, st, driverActor.StaffID, "bread-family"))

	err = svc.ReportWaste(as(driverActor), domain.ReportWasteRequest{
		Items:  []domain.WasteItem{{ProductID: "drink-water", ProductName: "Table Water", Quantity: 1}},
		Reason: "Damaged",
	})
	assertCode(t, err, apperror.CodeNotFound)

	require.NoError(t, svc.ReportWaste(as(driverActor), domain.ReportWasteRequest{
		Items:  []domain.WasteItem{{ProductID: "bread-family", ProductName: "Family Loaf", Quantity: 4}},
		Reason: "Damaged",
	}))
	assert.Equal(t, 6, personalStock(t, st, driverActor.StaffID, "bread-family"))
	assert.Equal(t, 90, centralStock(t, st, "bread-family"))
}

func TestSupplyRequestApproval(t *testing.T) {
	svc, st := newTestService(t)

	_, err := svc.RequestStockIncrease(as(storekeeperActor), domain.SupplyRequestCreate{
		IngredientID: "saffron", SupplierID: "sup-millers", Quantity: dec("1"),
	})
	assertCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, "Invalid ingredient or supplier.", apperror.Message(err))

	req, err := svc.RequestStockIncrease(as(storekeeperActor), domain.SupplyRequestCreate{
		IngredientID: "flour", SupplierID: "sup-millers", Quantity: dec("20"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConfirmationPending, req.Status)

	pending, err := svc.PendingSupplyRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)

	err = svc.ApproveStockIncrease(as(storekeeperActor), req.ID, domain.SupplyApproval{CostPerUnit: dec("1100")})
	assertCode(t, err, apperror.CodeForbidden)

	require.NoError(t, svc.ApproveStockIncrease(as(managerActor), req.ID, domain.SupplyApproval{CostPerUnit: dec("1100")}))

	assert.True(t, ingredientStock(t, st, "flour").Equal(dec("70")))
	read(t, st, func(ctx context.Context, tx store.Tx) error {
		ing, err := tx.Stock().GetIngredient(ctx, "flour")
		require.NoError(t, err)
		assert.True(t, ing.CostPerUnit.Equal(dec("1100")))

		sup, err := tx.Procurement().GetSupplier(ctx, "sup-millers")
		require.NoError(t, err)
		assert.True(t, sup.AmountOwed.Equal(dec("22000")), sup.AmountOwed.String())

		costs, err := tx.Journal().ListDirectCosts(ctx)
		require.NoError(t, err)
		require.Len(t, costs, 1)
		assert.True(t, costs[0].Total.Equal(dec("22000")))

		logs, err := tx.Journal().ListIngredientStockLogs(ctx)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, req.ID, logs[0].LogRefID)
		return nil
	})

	err = svc.ApproveStockIncrease(as(managerActor), req.ID, domain.SupplyApproval{CostPerUnit: dec("1100")})
	assertCode(t, err, apperror.CodeInvalidState)
	assert.Equal(t, "Request not found or already processed.", apperror.Message(err))
	assert.True(t, ingredientStock(t, st, "flour").Equal(dec("70")))
}

func TestSupplyRequestDecline(t *testing.T) {
	svc, st := newTestService(t)

	req, err := svc.RequestStockIncrease(as(storekeeperActor), domain.SupplyRequestCreate{
		IngredientID: "sugar", SupplierID: "sup-millers", Quantity: dec("5"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeclineStockIncrease(as(managerActor), req.ID))

	assert.True(t, ingredientStock(t, st, "sugar").Equal(dec("20")))
	pending, err := svc.PendingSupplyRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	err = svc.DeclineStockIncrease(as(managerActor), "supply-missing")
	assertCode(t, err, apperror.CodeNotFound)
}
