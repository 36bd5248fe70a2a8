package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

const msgTransferProcessed = "This transfer has already been processed."

// InitiateTransfer creates a pending transfer from the acting staff member.
// Stock is not moved until the recipient accepts.
func (s *Service) InitiateTransfer(ctx context.Context, req domain.InitiateTransferRequest) (domain.Transfer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Transfer{}, err
	}
	req.ToStaffID = strings.TrimSpace(req.ToStaffID)
	if req.ToStaffID == "" || len(req.Items) == 0 {
		return domain.Transfer{}, apperror.NewValidation("Please choose a recipient and at least one item.")
	}
	if err := validateLines(transferLines(req.Items)); err != nil {
		return domain.Transfer{}, err
	}

	kind := domain.KindRestock
	if req.IsSalesRun {
		kind = domain.KindSalesRun
	}

	var transfer domain.Transfer
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		recipient, err := getStaff(ctx, tx, req.ToStaffID, "Receiving staff member not found.")
		if err != nil {
			return err
		}
		fromName, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		items := make([]domain.TransferItem, len(req.Items))
		copy(items, req.Items)
		revenue := decimal.Zero
		if req.IsSalesRun {
			for i, item := range items {
				price := decimal.Zero
				p, err := tx.Stock().GetProduct(ctx, item.ProductID)
				switch {
				case err == nil:
					price = p.Price
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
				items[i].Price = &price
				revenue = revenue.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			}
		}

		transfer = domain.Transfer{
			ID:            xid.New("transfer"),
			Kind:          kind,
			FromStaffID:   actor.StaffID,
			FromStaffName: fromName,
			ToStaffID:     recipient.ID,
			ToStaffName:   recipient.Name,
			Items:         items,
			Date:          s.now().UTC(),
			Status:        domain.TransferPending,
			IsSalesRun:    req.IsSalesRun,
			Notes:         req.Notes,
			TotalRevenue:  revenue,
		}
		return tx.Transfers().SaveTransfer(ctx, transfer)
	})
	if err != nil {
		return domain.Transfer{}, err
	}

	s.logAudit(ctx, "transfer_initiate", "transfer", transfer.ID, fmt.Sprintf("kind=%s,to=%s,items=%s", kind, transfer.ToStaffID, itemsDetail(transfer.Items)))
	return transfer, nil
}

// AcknowledgeTransfer accepts or declines a transfer. Which stock movement an
// acceptance performs is decided by the transfer kind.
func (s *Service) AcknowledgeTransfer(ctx context.Context, transferID string, action string) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if action != domain.ActionAccept && action != domain.ActionDecline {
		return apperror.NewValidation("Action must be accept or decline.")
	}

	var kind domain.TransferKind
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		transfer, err := tx.Transfers().GetTransfer(ctx, transferID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Transfer does not exist.")
		}
		if err != nil {
			return err
		}
		if transfer.ToStaffID != actor.StaffID && !slices.Contains(centralRoles, actor.Role) {
			return apperror.NewForbidden("This transfer is not addressed to you.")
		}
		kind = transfer.EffectiveKind()
		transfer.Kind = kind

		if action == domain.ActionDecline {
			return s.declineTransfer(ctx, tx, transfer)
		}

		switch kind {
		case domain.KindReturn:
			return s.acceptReturn(ctx, tx, transfer)
		case domain.KindProductionReturn:
			return s.acceptProductionReturn(ctx, tx, transfer)
		default:
			return s.acceptOutbound(ctx, tx, transfer)
		}
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "transfer_"+action, "transfer", transferID, "kind="+string(kind))
	return nil
}

func (s *Service) declineTransfer(ctx context.Context, tx store.Tx, transfer *domain.Transfer) error {
	machine := domain.TransferMachine(transfer.Kind)
	if err := machine.Check(transfer.Status, domain.TransferCancelled); err != nil {
		return transitionError(err, msgTransferProcessed)
	}
	transfer.Status = domain.TransferCancelled
	if err := tx.Transfers().SaveTransfer(ctx, *transfer); err != nil {
		return err
	}
	return s.reopenRun(ctx, tx, transfer.OriginalRunID)
}

// reopenRun puts a run that was waiting on a declined return back to active.
func (s *Service) reopenRun(ctx context.Context, tx store.Tx, runID string) error {
	if !isStoredRun(runID) {
		return nil
	}
	run, err := tx.Transfers().GetTransfer(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !domain.TransferMachine(run.EffectiveKind()).Can(run.Status, domain.TransferActive) {
		return nil
	}
	run.Status = domain.TransferActive
	return tx.Transfers().SaveTransfer(ctx, *run)
}

func (s *Service) acceptReturn(ctx context.Context, tx store.Tx, transfer *domain.Transfer) error {
	if err := domain.TransferMachine(domain.KindReturn).Check(transfer.Status, domain.TransferCompleted); err != nil {
		return transitionError(err, msgTransferProcessed)
	}
	if err := addToCentral(ctx, tx, transferLines(transfer.Items)); err != nil {
		return err
	}

	if isStoredRun(transfer.OriginalRunID) {
		run, err := tx.Transfers().GetTransfer(ctx, transfer.OriginalRunID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		case domain.TransferMachine(run.EffectiveKind()).Can(run.Status, domain.TransferReturnCompleted):
			run.Status = domain.TransferReturnCompleted
			if err := tx.Transfers().SaveTransfer(ctx, *run); err != nil {
				return err
			}
		}
	}

	now := s.now().UTC()
	transfer.Status = domain.TransferCompleted
	transfer.TimeReceived = &now
	transfer.TimeCompleted = &now
	return tx.Transfers().SaveTransfer(ctx, *transfer)
}

func (s *Service) acceptProductionReturn(ctx context.Context, tx store.Tx, transfer *domain.Transfer) error {
	if err := domain.TransferMachine(domain.KindProductionReturn).Check(transfer.Status, domain.TransferCompleted); err != nil {
		return transitionError(err, msgTransferProcessed)
	}
	if err := addToCentral(ctx, tx, transferLines(transfer.Items)); err != nil {
		return err
	}
	now := s.now().UTC()
	transfer.Status = domain.TransferCompleted
	transfer.TimeReceived = &now
	transfer.TimeCompleted = &now
	return tx.Transfers().SaveTransfer(ctx, *transfer)
}

// acceptOutbound moves stock from central inventory into the recipient's
// personal stock. A sales run becomes active, a restock completes.
func (s *Service) acceptOutbound(ctx context.Context, tx store.Tx, transfer *domain.Transfer) error {
	target := domain.TransferCompleted
	if transfer.Kind == domain.KindSalesRun {
		target = domain.TransferActive
	}
	if err := domain.TransferMachine(transfer.Kind).Check(transfer.Status, target); err != nil {
		return transitionError(err, msgTransferProcessed)
	}

	lines := transferLines(transfer.Items)
	if err := takeFromCentral(ctx, tx, lines, notEnoughInMain); err != nil {
		return err
	}
	if err := addToPersonal(ctx, tx, transfer.ToStaffID, lines); err != nil {
		return err
	}

	now := s.now().UTC()
	transfer.Status = target
	transfer.TimeReceived = &now
	transfer.TimeCompleted = nil
	if target == domain.TransferCompleted {
		transfer.TimeCompleted = &now
	}
	return tx.Transfers().SaveTransfer(ctx, *transfer)
}

// isStoredRun is false for the synthetic run ids that have no transfer document.
func isStoredRun(runID string) bool {
	return domain.IsRealRunID(runID) &&
		runID != domain.ShowroomReturnRunID &&
		runID != domain.DeliveryReturnRunID
}

// ReturnStock hands unsold stock back. The returning staff member's personal
// stock is decremented now; central stock grows when the return is accepted.
func (s *Service) ReturnStock(ctx context.Context, runID string, req domain.ReturnStockRequest) (domain.Transfer, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Transfer{}, err
	}
	if len(req.Items) == 0 {
		return domain.Transfer{}, apperror.NewValidation("No items selected to return.")
	}
	lines := transferLines(req.Items)
	if err := validateLines(lines); err != nil {
		return domain.Transfer{}, err
	}

	var transfer domain.Transfer
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		receiver, err := getStaff(ctx, tx, req.ToStaffID, "Receiving staff member not found.")
		if err != nil {
			return err
		}
		fromName, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		if isStoredRun(runID) {
			run, err := getRun(ctx, tx, runID)
			if err != nil {
				return err
			}
			if run.ToStaffID != actor.StaffID {
				return apperror.NewForbidden("Only the staff member holding this run can return its stock.")
			}
			if err := domain.TransferMachine(run.EffectiveKind()).Check(run.Status, domain.TransferPendingReturn); err != nil {
				return transitionError(err, "This run is not active or has already been completed.")
			}
			run.Status = domain.TransferPendingReturn
			if err := tx.Transfers().SaveTransfer(ctx, *run); err != nil {
				return err
			}
		}

		if err := takeFromPersonal(ctx, tx, actor.StaffID, lines, personalCheck{insufficient: notEnoughFor}); err != nil {
			return err
		}

		transfer = domain.Transfer{
			ID:            xid.New("transfer"),
			Kind:          domain.KindReturn,
			FromStaffID:   actor.StaffID,
			FromStaffName: fromName,
			ToStaffID:     receiver.ID,
			ToStaffName:   receiver.Name,
			Items:         req.Items,
			Date:          s.now().UTC(),
			Status:        domain.TransferPendingReturn,
			Notes:         "Return from Sales Run " + runID,
			OriginalRunID: runID,
		}
		return tx.Transfers().SaveTransfer(ctx, transfer)
	})
	if err != nil {
		return domain.Transfer{}, err
	}

	s.logAudit(ctx, "stock_return", "transfer", transfer.ID, fmt.Sprintf("run=%s,items=%s", runID, itemsDetail(req.Items)))
	return transfer, nil
}

// CompleteRun settles an active sales run and books any cash shortage into
// the daily sales aggregate of the run's day.
func (s *Service) CompleteRun(ctx context.Context, runID string) error {
	var shortage decimal.Decimal
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		run, err := getRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		if run.EffectiveKind() != domain.KindSalesRun {
			return apperror.NewInvalidState("This transfer is not a sales run.")
		}
		if err := domain.TransferMachine(domain.KindSalesRun).Check(run.Status, domain.TransferCompleted); err != nil {
			return transitionError(err, "This run is not active or has already been completed.")
		}

		orders, err := tx.Sales().ListOrdersByRun(ctx, runID)
		if err != nil {
			return err
		}
		creditSales := sumOrders(orders, func(o domain.Order) bool {
			return o.PaymentMethod == domain.PaymentCredit
		})
		expectedCash := run.TotalRevenue.Sub(creditSales)
		shortage = expectedCash.Sub(run.TotalCollected)

		if shortage.Abs().GreaterThan(shortageTolerance) {
			if err := s.bookShortage(ctx, tx, run.Date, shortage); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		run.Status = domain.TransferCompleted
		run.TimeCompleted = &now
		return tx.Transfers().SaveTransfer(ctx, *run)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "run_complete", "transfer", runID, "shortage="+shortage.StringFixed(2))
	return nil
}

var shortageTolerance = decimal.RequireFromString("0.01")

func (s *Service) bookShortage(ctx context.Context, tx store.Tx, runDate time.Time, shortage decimal.Decimal) error {
	key := s.dayKey(runDate)
	daily, err := tx.Sales().GetDailySales(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		daily = &domain.DailySales{
			Date:        runDate,
			Description: "Daily Sales for " + key,
		}
	case err != nil:
		return err
	}
	daily.Shortage = daily.Shortage.Add(shortage)
	return tx.Sales().SaveDailySales(ctx, key, *daily)
}

// ResetSalesRun is the developer correction tool: it deletes the run's
// orders and confirmations, reverses the customer balances they produced
// and puts the run back to active without consulting the state machine.
func (s *Service) ResetSalesRun(ctx context.Context, runID string) error {
	if _, err := s.requireRole(ctx, domain.RoleDeveloper); err != nil {
		return err
	}

	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		run, err := getRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		orders, err := tx.Sales().ListOrdersByRun(ctx, runID)
		if err != nil {
			return err
		}
		confirmations, err := tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{RunID: runID})
		if err != nil {
			return err
		}

		owed := map[string]decimal.Decimal{}
		paid := map[string]decimal.Decimal{}
		var customers []string
		touch := func(id string) {
			if id == "" || id == domain.WalkInCustomerID {
				return
			}
			if _, ok := owed[id]; !ok {
				owed[id] = decimal.Zero
				paid[id] = decimal.Zero
				customers = append(customers, id)
			}
		}
		for _, o := range orders {
			touch(o.CustomerID)
			if o.CustomerID == "" || o.CustomerID == domain.WalkInCustomerID {
				continue
			}
			switch {
			case o.IsDebtPayment:
				paid[o.CustomerID] = paid[o.CustomerID].Add(o.Total)
			case o.PaymentMethod == domain.PaymentCredit:
				owed[o.CustomerID] = owed[o.CustomerID].Add(o.Total)
			}
		}
		for _, c := range confirmations {
			if c.IsDebtPayment && c.Status == domain.ConfirmationApproved {
				touch(c.CustomerID)
				if c.CustomerID != "" && c.CustomerID != domain.WalkInCustomerID {
					paid[c.CustomerID] = paid[c.CustomerID].Add(c.Amount)
				}
			}
		}

		for _, id := range customers {
			customer, err := tx.Sales().GetCustomer(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			customer.AmountOwed = customer.AmountOwed.Sub(owed[id])
			customer.AmountPaid = customer.AmountPaid.Sub(paid[id])
			if err := tx.Sales().SaveCustomer(ctx, *customer); err != nil {
				return err
			}
		}

		for _, o := range orders {
			if err := tx.Sales().DeleteOrder(ctx, o.ID); err != nil {
				return err
			}
		}
		for _, c := range confirmations {
			if err := tx.Sales().DeleteConfirmation(ctx, c.ID); err != nil {
				return err
			}
		}

		run.Status = domain.TransferActive
		run.TotalCollected = decimal.Zero
		run.TimeCompleted = nil
		return tx.Transfers().SaveTransfer(ctx, *run)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "run_reset", "transfer", runID, "")
	return nil
}

// RemoveStockFromStaff is an administrative correction. It does not check
// sufficiency.
func (s *Service) RemoveStockFromStaff(ctx context.Context, staffID string, req domain.RemoveStockRequest) error {
	if _, err := s.requireRole(ctx, domain.RoleDeveloper, domain.RoleManager); err != nil {
		return err
	}
	if strings.TrimSpace(staffID) == "" || strings.TrimSpace(req.ProductID) == "" || req.Quantity <= 0 {
		return apperror.NewValidation("Invalid staff ID, product ID, or quantity.")
	}

	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		ps, err := tx.Stock().GetPersonalStock(ctx, staffID, req.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Stock record not found for an item.")
		}
		if err != nil {
			return err
		}
		ps.Stock -= req.Quantity
		return tx.Stock().SavePersonalStock(ctx, staffID, *ps)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "staff_stock_remove", "personal_stock", staffID+"/"+req.ProductID, fmt.Sprintf("qty=%d", req.Quantity))
	return nil
}

func (s *Service) GetTransfer(ctx context.Context, transferID string) (domain.Transfer, error) {
	var out domain.Transfer
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := tx.Transfers().GetTransfer(ctx, transferID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Transfer does not exist.")
		}
		if err != nil {
			return err
		}
		out = *t
		return nil
	})
	return out, err
}

func (s *Service) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.Transfer, error) {
	var out []domain.Transfer
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Transfers().ListTransfers(ctx, filter)
		return err
	})
	return out, err
}

// PendingTransfersForStaff lists what staffID still has to acknowledge.
func (s *Service) PendingTransfersForStaff(ctx context.Context, staffID string) ([]domain.Transfer, error) {
	var out []domain.Transfer
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		out = nil
		for _, status := range []domain.TransferStatus{domain.TransferPending, domain.TransferPendingReturn} {
			list, err := tx.Transfers().ListTransfers(ctx, domain.TransferFilter{ToStaffID: staffID, Status: status})
			if err != nil {
				return err
			}
			out = append(out, list...)
		}
		return nil
	})
	return out, err
}

func (s *Service) PersonalStock(ctx context.Context, staffID string) ([]domain.PersonalStock, error) {
	var out []domain.PersonalStock
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Stock().ListPersonalStock(ctx, staffID)
		return err
	})
	return out, err
}
