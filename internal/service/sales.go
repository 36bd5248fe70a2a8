package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

// SaleOutcome names the documents a sale produced. Cash and POS run sales
// only produce a confirmation; the order follows on approval.
type SaleOutcome struct {
	OrderID        string `json:"orderId,omitempty"`
	ConfirmationID string `json:"confirmationId,omitempty"`
}

var approverRoles = []string{domain.RoleManager, domain.RoleDeveloper, domain.RoleSupervisor, domain.RoleAccountant}

// SellToCustomer sells from the operating staff member's personal stock
// during an active sales run.
func (s *Service) SellToCustomer(ctx context.Context, req domain.SellToCustomerRequest) (SaleOutcome, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if req.StaffID, err = operatingStaff(actor, req.StaffID); err != nil {
		return SaleOutcome{}, err
	}
	switch req.PaymentMethod {
	case domain.PaymentCash, domain.PaymentPOS, domain.PaymentCredit:
	default:
		return SaleOutcome{}, apperror.NewValidation("Payment method must be Cash, POS or Credit.")
	}

	var out SaleOutcome
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = s.sellToCustomer(ctx, tx, req, xid.New("order"))
		return err
	})
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "sale_customer", "transfer", req.RunID,
		fmt.Sprintf("method=%s,total=%s,order=%s,confirmation=%s", req.PaymentMethod, req.Total.StringFixed(2), out.OrderID, out.ConfirmationID))
	return out, nil
}

func (s *Service) sellToCustomer(ctx context.Context, tx store.Tx, req domain.SellToCustomerRequest, orderID string) (SaleOutcome, error) {
	lines := orderLines(req.Items)
	if len(lines) == 0 {
		return SaleOutcome{}, apperror.NewValidation("No items in this sale.")
	}
	if err := validateLines(lines); err != nil {
		return SaleOutcome{}, err
	}
	if req.Total.IsNegative() {
		return SaleOutcome{}, apperror.NewValidation("Sale total cannot be negative.")
	}

	staff, err := getStaff(ctx, tx, req.StaffID, "Operating staff not found.")
	if err != nil {
		return SaleOutcome{}, err
	}
	run, err := getRun(ctx, tx, req.RunID)
	if err != nil {
		return SaleOutcome{}, err
	}
	if run.Status != domain.TransferActive {
		return SaleOutcome{}, apperror.NewInvalidState("This sales run is not active.")
	}

	var customer *domain.Customer
	if req.PaymentMethod == domain.PaymentCredit {
		if req.CustomerID == "" || req.CustomerID == domain.WalkInCustomerID {
			return SaleOutcome{}, apperror.NewValidation("Credit sales need a registered customer.")
		}
		if customer, err = getCustomer(ctx, tx, req.CustomerID); err != nil {
			return SaleOutcome{}, err
		}
		req.CustomerName = customer.Name
	}

	if err := takeFromPersonal(ctx, tx, staff.ID, lines, personalCheck{insufficient: notEnoughFor}); err != nil {
		return SaleOutcome{}, err
	}

	now := s.now().UTC()
	order := domain.Order{
		ID:            orderID,
		SalesRunID:    run.ID,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Items:         req.Items,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		Date:          now,
		StaffID:       staff.ID,
		StaffName:     staff.Name,
		Status:        domain.OrderStatusCompleted,
	}

	switch req.PaymentMethod {
	case domain.PaymentCredit:
		customer.AmountOwed = customer.AmountOwed.Add(req.Total)
		if err := tx.Sales().SaveCustomer(ctx, *customer); err != nil {
			return SaleOutcome{}, err
		}
		if err := tx.Sales().SaveOrder(ctx, order); err != nil {
			return SaleOutcome{}, err
		}
		return SaleOutcome{OrderID: order.ID}, nil

	case domain.PaymentCash, domain.PaymentPOS:
		confirmation := domain.PaymentConfirmation{
			ID:            xid.New("confirmation"),
			RunID:         run.ID,
			CustomerID:    req.CustomerID,
			CustomerName:  req.CustomerName,
			Items:         req.Items,
			Amount:        req.Total,
			DriverID:      staff.ID,
			DriverName:    staff.Name,
			Date:          now,
			Status:        domain.ConfirmationPending,
			PaymentMethod: req.PaymentMethod,
		}
		if err := tx.Sales().SaveConfirmation(ctx, confirmation); err != nil {
			return SaleOutcome{}, err
		}
		return SaleOutcome{ConfirmationID: confirmation.ID}, nil

	default:
		// Verified by the gateway: the money is already collected.
		run.TotalCollected = run.TotalCollected.Add(req.Total)
		if err := tx.Transfers().SaveTransfer(ctx, *run); err != nil {
			return SaleOutcome{}, err
		}
		if err := tx.Sales().SaveOrder(ctx, order); err != nil {
			return SaleOutcome{}, err
		}
		return SaleOutcome{OrderID: order.ID}, nil
	}
}

// posMethod maps a counter payment method onto its daily sales bucket.
func posMethod(method string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "cash":
		return domain.PaymentCash, nil
	case "pos", "card":
		return domain.PaymentPOS, nil
	case "transfer":
		return domain.PaymentTransfer, nil
	case "paystack":
		return domain.PaymentPaystack, nil
	}
	return "", apperror.NewValidation("Payment method must be cash, pos or transfer.")
}

// PosSale records a counter sale from the seller's personal stock and adds
// it to the day's sales aggregate.
func (s *Service) PosSale(ctx context.Context, req domain.PosSaleRequest) (SaleOutcome, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if req.StaffID, err = operatingStaff(actor, req.StaffID); err != nil {
		return SaleOutcome{}, err
	}
	method, err := posMethod(req.PaymentMethod)
	if err != nil {
		return SaleOutcome{}, err
	}
	req.PaymentMethod = method

	var out SaleOutcome
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = s.posSale(ctx, tx, req, xid.New("order"))
		return err
	})
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "sale_pos", "order", out.OrderID, fmt.Sprintf("method=%s,total=%s", method, req.Total.StringFixed(2)))
	return out, nil
}

func (s *Service) posSale(ctx context.Context, tx store.Tx, req domain.PosSaleRequest, orderID string) (SaleOutcome, error) {
	lines := orderLines(req.Items)
	if len(lines) == 0 {
		return SaleOutcome{}, apperror.NewValidation("No items in this sale.")
	}
	if err := validateLines(lines); err != nil {
		return SaleOutcome{}, err
	}
	if req.Total.IsNegative() {
		return SaleOutcome{}, apperror.NewValidation("Sale total cannot be negative.")
	}

	staff, err := getStaff(ctx, tx, req.StaffID, "Operating staff not found.")
	if err != nil {
		return SaleOutcome{}, err
	}
	check := personalCheck{missing: stockRecordMissing, insufficient: notEnoughFor}
	if err := takeFromPersonal(ctx, tx, staff.ID, lines, check); err != nil {
		return SaleOutcome{}, err
	}

	date := s.now().UTC()
	if req.Date != nil && !req.Date.IsZero() {
		date = req.Date.UTC()
	}
	customerName := req.CustomerName
	if customerName == "" {
		customerName = "Walk-in Customer"
	}
	order := domain.Order{
		ID:            orderID,
		SalesRunID:    domain.PosSaleRunPrefix + orderID,
		CustomerID:    domain.WalkInCustomerID,
		CustomerName:  customerName,
		Items:         req.Items,
		Total:         req.Total,
		PaymentMethod: req.PaymentMethod,
		Date:          date,
		StaffID:       staff.ID,
		StaffName:     staff.Name,
		Status:        domain.OrderStatusCompleted,
	}
	if err := tx.Sales().SaveOrder(ctx, order); err != nil {
		return SaleOutcome{}, err
	}

	key := s.dayKey(date)
	daily, err := tx.Sales().GetDailySales(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		daily = &domain.DailySales{Date: s.startOfDay(date), Description: "Daily Sales for " + key}
	case err != nil:
		return SaleOutcome{}, err
	}
	switch req.PaymentMethod {
	case domain.PaymentCash:
		daily.Cash = daily.Cash.Add(req.Total)
	case domain.PaymentPOS:
		daily.POS = daily.POS.Add(req.Total)
	default:
		daily.Transfer = daily.Transfer.Add(req.Total)
	}
	daily.Total = daily.Total.Add(req.Total)
	if err := tx.Sales().SaveDailySales(ctx, key, *daily); err != nil {
		return SaleOutcome{}, err
	}
	return SaleOutcome{OrderID: order.ID}, nil
}

// RecordDebtPayment queues a customer's debt payment collected on a run for
// approval.
func (s *Service) RecordDebtPayment(ctx context.Context, req domain.DebtPaymentRequest) (SaleOutcome, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if req.RunID == "" || req.CustomerID == "" || !req.Amount.IsPositive() {
		return SaleOutcome{}, apperror.NewValidation("Please choose a customer and enter a positive amount.")
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if req.PaymentMethod != domain.PaymentCash && req.PaymentMethod != domain.PaymentPOS {
		return SaleOutcome{}, apperror.NewValidation("Payment method must be Cash or POS.")
	}

	var confirmation domain.PaymentConfirmation
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := getRun(ctx, tx, req.RunID); err != nil {
			return err
		}
		customer, err := getCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		driver, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		confirmation = domain.PaymentConfirmation{
			ID:            xid.New("confirmation"),
			RunID:         req.RunID,
			CustomerID:    customer.ID,
			CustomerName:  customer.Name,
			Items:         []domain.OrderItem{},
			Amount:        req.Amount,
			DriverID:      actor.StaffID,
			DriverName:    driver,
			Date:          s.now().UTC(),
			Status:        domain.ConfirmationPending,
			PaymentMethod: req.PaymentMethod,
			IsDebtPayment: true,
		}
		return tx.Sales().SaveConfirmation(ctx, confirmation)
	})
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "debt_payment_record", "payment_confirmation", confirmation.ID, "customer="+req.CustomerID)
	return SaleOutcome{ConfirmationID: confirmation.ID}, nil
}

// LogRunExpense queues a cash expense paid out during a run for approval.
func (s *Service) LogRunExpense(ctx context.Context, req domain.RunExpenseRequest) (SaleOutcome, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return SaleOutcome{}, err
	}
	if req.RunID == "" || !req.Amount.IsPositive() {
		return SaleOutcome{}, apperror.NewValidation("Please enter a positive expense amount.")
	}

	var confirmation domain.PaymentConfirmation
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := getRun(ctx, tx, req.RunID); err != nil {
			return err
		}
		driver, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		confirmation = domain.PaymentConfirmation{
			ID:            xid.New("confirmation"),
			RunID:         req.RunID,
			Items:         []domain.OrderItem{},
			Amount:        req.Amount,
			DriverID:      actor.StaffID,
			DriverName:    driver,
			Date:          s.now().UTC(),
			Status:        domain.ConfirmationPending,
			PaymentMethod: domain.PaymentCash,
			IsExpense:     true,
			ExpenseDetails: &domain.ExpenseDetails{
				Category:    req.Category,
				Description: req.Description,
			},
		}
		return tx.Sales().SaveConfirmation(ctx, confirmation)
	})
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "run_expense_record", "payment_confirmation", confirmation.ID, "run="+req.RunID)
	return SaleOutcome{ConfirmationID: confirmation.ID}, nil
}

// HandlePaymentConfirmation approves or declines a pending confirmation.
// Approval counts the amount against its run and then posts exactly one of a
// debt payment, an expense or the deferred sale order.
func (s *Service) HandlePaymentConfirmation(ctx context.Context, confirmationID string, action string) (SaleOutcome, error) {
	if _, err := s.requireRole(ctx, approverRoles...); err != nil {
		return SaleOutcome{}, err
	}
	if action != domain.ActionApprove && action != domain.ActionDecline {
		return SaleOutcome{}, apperror.NewValidation("Action must be approve or decline.")
	}

	var out SaleOutcome
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		out = SaleOutcome{ConfirmationID: confirmationID}
		c, err := tx.Sales().GetConfirmation(ctx, confirmationID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Confirmation not found.")
		}
		if err != nil {
			return err
		}

		target := domain.ConfirmationDeclined
		if action == domain.ActionApprove {
			target = domain.ConfirmationApproved
		}
		if err := domain.ConfirmationMachine.Check(c.Status, target); err != nil {
			return transitionError(err, "This confirmation has already been processed.")
		}
		c.Status = target
		if err := tx.Sales().SaveConfirmation(ctx, *c); err != nil {
			return err
		}
		if target == domain.ConfirmationDeclined {
			return nil
		}

		now := s.now().UTC()
		if c.HasRun() && isStoredRun(c.RunID) {
			run, err := tx.Transfers().GetTransfer(ctx, c.RunID)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return err
			default:
				run.TotalCollected = run.TotalCollected.Add(c.Amount)
				if err := tx.Transfers().SaveTransfer(ctx, *run); err != nil {
					return err
				}
			}
		}

		switch {
		case c.IsDebtPayment:
			customer, err := getCustomer(ctx, tx, c.CustomerID)
			if err != nil {
				return err
			}
			customer.AmountPaid = customer.AmountPaid.Add(c.Amount)
			return tx.Sales().SaveCustomer(ctx, *customer)

		case c.IsExpense:
			category, description := "Run Expense", "Expense for run "+c.RunID
			if c.ExpenseDetails != nil {
				if c.ExpenseDetails.Category != "" {
					category = c.ExpenseDetails.Category
				}
				if c.ExpenseDetails.Description != "" {
					description = c.ExpenseDetails.Description
				}
			}
			return tx.Journal().AddIndirectCost(ctx, domain.IndirectCost{
				ID:          xid.New("cost"),
				Category:    category,
				Description: description,
				Amount:      c.Amount,
				Date:        now,
				Details:     []domain.CostDetail{{Name: c.DriverName, Amount: c.Amount}},
			})

		default:
			customerID, customerName := c.CustomerID, c.CustomerName
			if customerID == "" {
				customerID = domain.WalkInCustomerID
			}
			if customerName == "" {
				customerName = "Walk-in Customer"
			}
			order := domain.Order{
				ID:            "order-" + c.ID,
				SalesRunID:    c.RunID,
				CustomerID:    customerID,
				CustomerName:  customerName,
				Items:         c.Items,
				Total:         c.Amount,
				PaymentMethod: c.PaymentMethod,
				Date:          now,
				StaffID:       c.DriverID,
				StaffName:     c.DriverName,
				Status:        domain.OrderStatusCompleted,
			}
			out.OrderID = order.ID
			return tx.Sales().SaveOrder(ctx, order)
		}
	})
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "confirmation_"+action, "payment_confirmation", confirmationID, "")
	return out, nil
}

func (s *Service) PendingConfirmations(ctx context.Context) ([]domain.PaymentConfirmation, error) {
	var out []domain.PaymentConfirmation
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Sales().ListConfirmations(ctx, domain.ConfirmationFilter{Status: domain.ConfirmationPending})
		return err
	})
	return out, err
}

func (s *Service) OrdersForRun(ctx context.Context, runID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Sales().ListOrdersByRun(ctx, runID)
		return err
	})
	return out, err
}

// DailySales returns the sales aggregate for a yyyy-MM-dd day. A day without
// sales reads as zero.
func (s *Service) DailySales(ctx context.Context, day string) (domain.DailySales, error) {
	parsed, err := time.ParseInLocation(domain.DaySalesKeyLayout, day, s.loc)
	if err != nil {
		return domain.DailySales{}, apperror.NewValidation("Day must be formatted as yyyy-MM-dd.")
	}
	var out domain.DailySales
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		daily, err := tx.Sales().GetDailySales(ctx, day)
		switch {
		case errors.Is(err, store.ErrNotFound):
			out = domain.DailySales{Date: parsed, Description: "Daily Sales for " + day}
			return nil
		case err != nil:
			return err
		}
		out = *daily
		return nil
	})
	return out, err
}
