package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

func TestInitiateSalesRunPricesItems(t *testing.T) {
	svc, st := newTestService(t)

	run, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID:  driverActor.StaffID,
		Items:      []domain.TransferItem{item("bread-family", "Family Loaf", 30), item("bread-mini", "Mini Loaf", 10)},
		IsSalesRun: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.KindSalesRun, run.Kind)
	assert.Equal(t, domain.TransferPending, run.Status)
	assert.True(t, run.TotalRevenue.Equal(decimal.NewFromInt(41000)), run.TotalRevenue.String())
	require.NotNil(t, run.Items[0].Price)
	assert.True(t, run.Items[0].Price.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "Tunde Bakare", run.FromStaffName)
	assert.Equal(t, "Musa Bello", run.ToStaffName)

	// nothing moves before acceptance
	assert.Equal(t, 100, centralStock(t, st, "bread-family"))
}

func TestInitiateTransferUnknownRecipient(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: "staff-ghost",
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 1)},
	})
	assertCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, "Receiving staff member not found.", apperror.Message(err))
}

func TestAcceptRestockConservesQuantity(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: showroomActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30), item("bread-mini", "Mini Loaf", 10)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcknowledgeTransfer(as(showroomActor), tr.ID, domain.ActionAccept))

	assert.Equal(t, 70, centralStock(t, st, "bread-family"))
	assert.Equal(t, 30, centralStock(t, st, "bread-mini"))
	assert.Equal(t, 30, personalStock(t, st, showroomActor.StaffID, "bread-family"))
	assert.Equal(t, 10, personalStock(t, st, showroomActor.StaffID, "bread-mini"))

	got := transferByID(t, st, tr.ID)
	assert.Equal(t, domain.TransferCompleted, got.Status)
	assert.NotNil(t, got.TimeReceived)
	assert.NotNil(t, got.TimeCompleted)
}

func TestAcceptSalesRunLeavesCompletionOpen(t *testing.T) {
	svc, st := newTestService(t)

	run := startRun(t, svc, item("bread-family", "Family Loaf", 30))

	got := transferByID(t, st, run.ID)
	assert.Equal(t, domain.TransferActive, got.Status)
	assert.NotNil(t, got.TimeReceived)
	assert.Nil(t, got.TimeCompleted)
}

func TestAcceptIsAllOrNothing(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30), item("bread-mini", "Mini Loaf", 41)},
	})
	require.NoError(t, err)

	err = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionAccept)
	assertCode(t, err, apperror.CodeInsufficientStock)
	assert.Equal(t, "Not enough stock for Mini Loaf in main inventory.", apperror.Message(err))

	assert.Equal(t, 100, centralStock(t, st, "bread-family"))
	assert.Equal(t, 40, centralStock(t, st, "bread-mini"))
	assert.Equal(t, 0, personalStock(t, st, driverActor.StaffID, "bread-family"))
	assert.Equal(t, domain.TransferPending, transferByID(t, st, tr.ID).Status)
}

func TestAcceptChecksRepeatedProductAgainstCombinedQuantity(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 60), item("bread-family", "Family Loaf", 60)},
	})
	require.NoError(t, err)

	err = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionAccept)
	assertCode(t, err, apperror.CodeInsufficientStock)
	assert.Equal(t, 100, centralStock(t, st, "bread-family"))
}

func TestAcknowledgeTwiceFails(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionAccept))

	err = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionAccept)
	assertCode(t, err, apperror.CodeInvalidState)
	assert.Equal(t, "This transfer has already been processed.", apperror.Message(err))

	err = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionDecline)
	assertCode(t, err, apperror.CodeInvalidState)

	assert.Equal(t, 70, centralStock(t, st, "bread-family"))
	assert.Equal(t, 30, personalStock(t, st, driverActor.StaffID, "bread-family"))
}

func TestDeclineTwiceFails(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionDecline))
	assert.Equal(t, domain.TransferCancelled, transferByID(t, st, tr.ID).Status)

	err = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionDecline)
	assertCode(t, err, apperror.CodeInvalidState)
	assert.Equal(t, 100, centralStock(t, st, "bread-family"))
}

func TestAcknowledgeUnknownTransfer(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.AcknowledgeTransfer(as(driverActor), "transfer-missing", domain.ActionAccept)
	assertCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, "Transfer does not exist.", apperror.Message(err))

	err = svc.AcknowledgeTransfer(as(driverActor), "transfer-missing", "maybe")
	assertCode(t, err, apperror.CodeValidation)
}

func TestAcknowledgeRequiresRecipient(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 10)},
	})
	require.NoError(t, err)

	for _, action := range []string{domain.ActionAccept, domain.ActionDecline} {
		err = svc.AcknowledgeTransfer(as(bakerActor), tr.ID, action)
		assertCode(t, err, apperror.CodeForbidden)
		assert.Equal(t, "This transfer is not addressed to you.", apperror.Message(err))
	}
	assert.Equal(t, domain.TransferPending, transferByID(t, st, tr.ID).Status)
	assert.Equal(t, 0, personalStock(t, st, driverActor.StaffID, "bread-family"))

	err = svc.AcknowledgeTransfer(context.Background(), tr.ID, domain.ActionAccept)
	assertCode(t, err, apperror.CodeUnauthorized)

	// central staff may settle it for the recipient
	require.NoError(t, svc.AcknowledgeTransfer(as(managerActor), tr.ID, domain.ActionAccept))
	assert.Equal(t, 10, personalStock(t, st, driverActor.StaffID, "bread-family"))
}

func TestReturnStockRequiresRunHolder(t *testing.T) {
	svc, st := newTestService(t)
	run := startRun(t, svc, item("bread-family", "Family Loaf", 10))
	stockShowroom(t, svc, item("bread-family", "Family Loaf", 5))

	for _, actor := range []domain.Actor{showroomActor, managerActor} {
		_, err := svc.ReturnStock(as(actor), run.ID, domain.ReturnStockRequest{
			Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 1)},
			ToStaffID: storekeeperActor.StaffID,
		})
		assertCode(t, err, apperror.CodeForbidden)
	}

	assert.Equal(t, domain.TransferActive, transferByID(t, st, run.ID).Status)
	assert.Equal(t, 5, personalStock(t, st, showroomActor.StaffID, "bread-family"))
	assert.Equal(t, 10, personalStock(t, st, driverActor.StaffID, "bread-family"))
}

func TestReturnRoundTripRestoresCentralStock(t *testing.T) {
	svc, st := newTestService(t)

	run := startRun(t, svc, item("bread-family", "Family Loaf", 30))
	assert.Equal(t, 70, centralStock(t, st, "bread-family"))
	assert.Equal(t, 30, personalStock(t, st, driverActor.StaffID, "bread-family"))

	ret, err := svc.ReturnStock(as(driverActor), run.ID, domain.ReturnStockRequest{
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30)},
		ToStaffID: storekeeperActor.StaffID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindReturn, ret.Kind)
	assert.Equal(t, domain.TransferPendingReturn, ret.Status)
	assert.Equal(t, run.ID, ret.OriginalRunID)
	assert.Equal(t, 0, personalStock(t, st, driverActor.StaffID, "bread-family"))
	assert.Equal(t, domain.TransferPendingReturn, transferByID(t, st, run.ID).Status)

	pending, err := svc.PendingTransfersForStaff(context.Background(), storekeeperActor.StaffID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ret.ID, pending[0].ID)

	require.NoError(t, svc.AcknowledgeTransfer(as(storekeeperActor), ret.ID, domain.ActionAccept))

	assert.Equal(t, 100, centralStock(t, st, "bread-family"))
	assert.Equal(t, domain.TransferReturnCompleted, transferByID(t, st, run.ID).Status)
	assert.Equal(t, domain.TransferCompleted, transferByID(t, st, ret.ID).Status)
}

func TestDeclinedReturnReactivatesRun(t *testing.T) {
	svc, st := newTestService(t)

	run := startRun(t, svc, item("bread-family", "Family Loaf", 30))
	ret, err := svc.ReturnStock(as(driverActor), run.ID, domain.ReturnStockRequest{
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 10)},
		ToStaffID: storekeeperActor.StaffID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.AcknowledgeTransfer(as(storekeeperActor), ret.ID, domain.ActionDecline))

	assert.Equal(t, domain.TransferActive, transferByID(t, st, run.ID).Status)
	assert.Equal(t, domain.TransferCancelled, transferByID(t, st, ret.ID).Status)
	assert.Equal(t, 70, centralStock(t, st, "bread-family"))
	assert.Equal(t, 20, personalStock(t, st, driverActor.StaffID, "bread-family"))
}

func TestReturnStockGuards(t *testing.T) {
	svc, st := newTestService(t)

	pendingRun, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID:  driverActor.StaffID,
		Items:      []domain.TransferItem{item("bread-family", "Family Loaf", 5)},
		IsSalesRun: true,
	})
	require.NoError(t, err)

	_, err = svc.ReturnStock(as(driverActor), pendingRun.ID, domain.ReturnStockRequest{ToStaffID: storekeeperActor.StaffID})
	assertCode(t, err, apperror.CodeValidation)
	assert.Equal(t, "No items selected to return.", apperror.Message(err))

	_, err = svc.ReturnStock(as(driverActor), pendingRun.ID, domain.ReturnStockRequest{
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 5)},
		ToStaffID: storekeeperActor.StaffID,
	})
	assertCode(t, err, apperror.CodeInvalidState)
	assert.Equal(t, "This run is not active or has already been completed.", apperror.Message(err))

	run := startRun(t, svc, item("bread-mini", "Mini Loaf", 5))
	_, err = svc.ReturnStock(as(driverActor), run.ID, domain.ReturnStockRequest{
		Items:     []domain.TransferItem{item("bread-mini", "Mini Loaf", 6)},
		ToStaffID: storekeeperActor.StaffID,
	})
	assertCode(t, err, apperror.CodeInsufficientStock)
	assert.Equal(t, domain.TransferActive, transferByID(t, st, run.ID).Status)
	assert.Equal(t, 5, personalStock(t, st, driverActor.StaffID, "bread-mini"))
}

func TestShowroomReturnHasNoRun(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: showroomActor.StaffID,
		Items:     []domain.TransferItem{item("bread-sliced", "Sliced Bread", 10)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcknowledgeTransfer(as(showroomActor), tr.ID, domain.ActionAccept))

	ret, err := svc.ReturnStock(as(showroomActor), domain.ShowroomReturnRunID, domain.ReturnStockRequest{
		Items:     []domain.TransferItem{item("bread-sliced", "Sliced Bread", 4)},
		ToStaffID: storekeeperActor.StaffID,
	})
	require.NoError(t, err)
	require.NoError(t, svc.AcknowledgeTransfer(as(storekeeperActor), ret.ID, domain.ActionAccept))

	assert.Equal(t, 54, centralStock(t, st, "bread-sliced"))
	assert.Equal(t, 6, personalStock(t, st, showroomActor.StaffID, "bread-sliced"))
}

func TestCompleteRunRecordsShortage(t *testing.T) {
	svc, st := newTestService(t)

	read(t, st, func(ctx context.Context, tx store.Tx) error {
		run := domain.Transfer{
			ID:             "run-shortage",
			Kind:           domain.KindSalesRun,
			FromStaffID:    storekeeperActor.StaffID,
			ToStaffID:      driverActor.StaffID,
			Date:           fixedNow,
			Status:         domain.TransferActive,
			IsSalesRun:     true,
			TotalRevenue:   decimal.NewFromInt(1000),
			TotalCollected: decimal.NewFromInt(750),
		}
		if err := tx.Transfers().SaveTransfer(ctx, run); err != nil {
			return err
		}
		orders := []domain.Order{
			{ID: "o-1", SalesRunID: run.ID, PaymentMethod: domain.PaymentCredit, Total: decimal.NewFromInt(150)},
			{ID: "o-2", SalesRunID: run.ID, PaymentMethod: domain.PaymentCredit, Total: decimal.NewFromInt(50)},
			{ID: "o-3", SalesRunID: run.ID, PaymentMethod: domain.PaymentCash, Total: decimal.NewFromInt(300)},
		}
		for _, o := range orders {
			if err := tx.Sales().SaveOrder(ctx, o); err != nil {
				return err
			}
		}
		return tx.Sales().SaveDailySales(ctx, "2026-03-11", domain.DailySales{Shortage: decimal.NewFromInt(5)})
	})

	require.NoError(t, svc.CompleteRun(as(managerActor), "run-shortage"))

	daily, err := svc.DailySales(context.Background(), "2026-03-11")
	require.NoError(t, err)
	assert.True(t, daily.Shortage.Equal(decimal.NewFromInt(55)), daily.Shortage.String())

	run := transferByID(t, st, "run-shortage")
	assert.Equal(t, domain.TransferCompleted, run.Status)
	assert.NotNil(t, run.TimeCompleted)

	err = svc.CompleteRun(as(managerActor), "run-shortage")
	assertCode(t, err, apperror.CodeInvalidState)
}

func TestCompleteRunCountsUncollectedRevenue(t *testing.T) {
	svc, _ := newTestService(t)

	run := startRun(t, svc, item("bread-family", "Family Loaf", 1))
	require.NoError(t, svc.CompleteRun(as(managerActor), run.ID))
	daily, err := svc.DailySales(context.Background(), "2026-03-11")
	require.NoError(t, err)
	assert.True(t, daily.Shortage.Equal(decimal.NewFromInt(1200)))

	_, err = svc.DailySales(context.Background(), "11-03-2026")
	assertCode(t, err, apperror.CodeValidation)

	empty, err := svc.DailySales(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	svc, st := newTestService(t)

	tr, err := svc.InitiateTransfer(as(storekeeperActor), domain.InitiateTransferRequest{
		ToStaffID: driverActor.StaffID,
		Items:     []domain.TransferItem{item("bread-family", "Family Loaf", 30)},
	})
	require.NoError(t, err)

	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = svc.AcknowledgeTransfer(as(driverActor), tr.ID, domain.ActionAccept)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, apperror.CodeInvalidState, apperror.Code(err), "error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 70, centralStock(t, st, "bread-family"))
	assert.Equal(t, 30, personalStock(t, st, driverActor.StaffID, "bread-family"))
}

func TestResetSalesRun(t *testing.T) {
	svc, st := newTestService(t)

	run := startRun(t, svc, item("bread-family", "Family Loaf", 30))
	_, err := svc.SellToCustomer(as(driverActor), domain.SellToCustomerRequest{
		RunID:         run.ID,
		Items:         []domain.OrderItem{{ProductID: "bread-family", Name: "Family Loaf", Quantity: 1, Price: decimal.NewFromInt(1200)}},
		CustomerID:    "cust-mama-t",
		PaymentMethod: domain.PaymentCredit,
		Total:         decimal.NewFromInt(1200),
	})
	require.NoError(t, err)
	debt, err := svc.RecordDebtPayment(as(driverActor), domain.DebtPaymentRequest{
		RunID:      run.ID,
		CustomerID: "cust-mama-t",
		Amount:     decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	_, err = svc.HandlePaymentConfirmation(as(managerActor), debt.ConfirmationID, domain.ActionApprove)
	require.NoError(t, err)

	c := customerByID(t, st, "cust-mama-t")
	require.True(t, c.AmountOwed.Equal(decimal.NewFromInt(1200)))
	require.True(t, c.AmountPaid.Equal(decimal.NewFromInt(500)))

	err = svc.ResetSalesRun(as(managerActor), run.ID)
	assertCode(t, err, apperror.CodeForbidden)

	require.NoError(t, svc.ResetSalesRun(as(developerActor), run.ID))

	c = customerByID(t, st, "cust-mama-t")
	assert.True(t, c.AmountOwed.IsZero(), c.AmountOwed.String())
	assert.True(t, c.AmountPaid.IsZero(), c.AmountPaid.String())

	orders, err := svc.OrdersForRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	read(t, st, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{RunID: run.ID})
		assert.Empty(t, list)
		return err
	})

	got := transferByID(t, st, run.ID)
	assert.Equal(t, domain.TransferActive, got.Status)
	assert.True(t, got.TotalCollected.IsZero())
	assert.Nil(t, got.TimeCompleted)
}

func TestRemoveStockFromStaff(t *testing.T) {
	svc, st := newTestService(t)
	startRun(t, svc, item("bread-family", "Family Loaf", 30))

	err := svc.RemoveStockFromStaff(as(driverActor), driverActor.StaffID, domain.RemoveStockRequest{ProductID: "bread-family", Quantity: 5})
	assertCode(t, err, apperror.CodeForbidden)

	require.NoError(t, svc.RemoveStockFromStaff(as(managerActor), driverActor.StaffID, domain.RemoveStockRequest{ProductID: "bread-family", Quantity: 5}))
	assert.Equal(t, 25, personalStock(t, st, driverActor.StaffID, "bread-family"))

	err = svc.RemoveStockFromStaff(as(managerActor), driverActor.StaffID, domain.RemoveStockRequest{ProductID: "drink-water", Quantity: 1})
	assertCode(t, err, apperror.CodeNotFound)
	assert.Equal(t, "Stock record not found for an item.", apperror.Message(err))

	err = svc.RemoveStockFromStaff(as(managerActor), driverActor.StaffID, domain.RemoveStockRequest{ProductID: "bread-family"})
	assertCode(t, err, apperror.CodeValidation)
}
