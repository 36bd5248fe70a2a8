package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/payment"
	"github.com/gabrielekerete60/bms/internal/store"
)

// referenceClaimTTL bounds how long one caller owns a reference while it is
// verified and posted. A crashed caller's claim lapses after it.
const referenceClaimTTL = 10 * time.Minute

func (s *Service) requirePayments() error {
	if s.payments == nil {
		return apperror.NewPaymentProvider("Online payments are not configured.")
	}
	return nil
}

// InitializePayment opens a gateway transaction and returns its reference.
// The sale itself is posted by VerifyAndFinalizeOrder once the customer paid.
func (s *Service) InitializePayment(ctx context.Context, req domain.InitializePaymentRequest) (string, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return "", err
	}
	if err := s.requirePayments(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Email) == "" || !req.Total.IsPositive() {
		return "", apperror.NewValidation("Please provide an email and a positive amount.")
	}
	if req.IsDebtPayment && (req.RunID == "" || req.CustomerID == "") {
		return "", apperror.NewValidation("Metadata for debt payment is incomplete.")
	}
	if req.StaffID, err = operatingStaff(actor, req.StaffID); err != nil {
		return "", err
	}

	meta := domain.PaymentMetadata{
		CustomerName:  req.CustomerName,
		StaffID:       req.StaffID,
		Cart:          req.Items,
		IsPosSale:     req.IsPosSale,
		IsDebtPayment: req.IsDebtPayment,
		RunID:         req.RunID,
		CustomerID:    req.CustomerID,
	}
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		staff, err := getStaff(ctx, tx, req.StaffID, "Operating staff not found.")
		if err != nil {
			return err
		}
		meta.StaffName = staff.Name
		return nil
	})
	if err != nil {
		return "", err
	}

	reference, err := s.payments.Initialize(ctx, payment.InitializeRequest{Email: req.Email, Amount: req.Total, Metadata: meta})
	if err != nil {
		s.log.Warnw("payment initialize failed", "error", err)
		return "", apperror.NewPaymentProvider("Could not start the payment. Please try again.").WithCause(err)
	}

	s.logAudit(ctx, "payment_initialize", "payment", reference, "total="+req.Total.StringFixed(2))
	return reference, nil
}

// VerifyAndFinalizeOrder confirms a gateway reference and posts the sale its
// metadata describes. Replaying a finalized reference returns the order
// already posted for it.
func (s *Service) VerifyAndFinalizeOrder(ctx context.Context, reference string) (SaleOutcome, error) {
	if err := s.requirePayments(); err != nil {
		return SaleOutcome{}, err
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return SaleOutcome{}, apperror.NewValidation("Payment reference is required.")
	}

	token, claimed, err := s.guard.Claim(ctx, reference, referenceClaimTTL)
	if err != nil {
		// The durable order id still prevents a double post.
		s.log.Warnw("reference guard unavailable", "reference", reference, "error", err)
		claimed = true
	}
	if !claimed {
		return SaleOutcome{}, apperror.NewInvalidState("This payment is already being processed.")
	}

	out, err := s.finalize(ctx, reference)
	if token != "" {
		if rerr := s.guard.Release(ctx, reference, token); rerr != nil {
			s.log.Warnw("reference release failed", "reference", reference, "error", rerr)
		}
	}
	if err != nil {
		return SaleOutcome{}, err
	}

	s.logAudit(ctx, "payment_finalize", "payment", reference, "order="+out.OrderID)
	return out, nil
}

func (s *Service) finalize(ctx context.Context, reference string) (SaleOutcome, error) {
	v, err := s.payments.Verify(ctx, reference)
	if err != nil {
		s.log.Warnw("payment verify failed", "reference", reference, "error", err)
		return SaleOutcome{}, apperror.NewPaymentProvider("Could not verify the payment.").WithCause(err)
	}
	if !v.Succeeded() {
		msg := "Payment was not successful."
		if v.Message != "" {
			msg = "Payment was not successful: " + v.Message
		}
		return SaleOutcome{}, apperror.NewPaymentProvider(msg)
	}
	meta := v.Metadata
	if meta == nil {
		return SaleOutcome{}, apperror.NewValidation("Transaction metadata is missing or corrupt.")
	}

	orderID := "paystack-" + reference
	if meta.IsDebtPayment && !meta.IsPosSale {
		orderID = "debt-payment-" + reference
	}

	var out SaleOutcome
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.Sales().GetOrder(ctx, orderID)
		switch {
		case err == nil:
			out = SaleOutcome{OrderID: existing.ID}
			return nil
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		switch {
		case meta.IsPosSale:
			paidAt := v.PaidAt
			out, err = s.posSale(ctx, tx, domain.PosSaleRequest{
				Items:         meta.Cart,
				CustomerName:  meta.CustomerName,
				PaymentMethod: domain.PaymentPaystack,
				StaffID:       meta.StaffID,
				Total:         v.Amount,
				Date:          &paidAt,
			}, orderID)
			return err

		case meta.IsDebtPayment:
			out, err = s.gatewayDebtPayment(ctx, tx, meta, v, orderID)
			return err

		case meta.RunID != "":
			out, err = s.sellToCustomer(ctx, tx, domain.SellToCustomerRequest{
				RunID:         meta.RunID,
				Items:         meta.Cart,
				CustomerID:    meta.CustomerID,
				CustomerName:  meta.CustomerName,
				PaymentMethod: domain.PaymentPaystack,
				StaffID:       meta.StaffID,
				Total:         v.Amount,
			}, orderID)
			return err
		}
		return apperror.NewValidation("Could not determine transaction type from metadata.")
	})
	return out, err
}

func (s *Service) gatewayDebtPayment(ctx context.Context, tx store.Tx, meta *domain.PaymentMetadata, v payment.Verification, orderID string) (SaleOutcome, error) {
	if meta.RunID == "" || meta.CustomerID == "" {
		return SaleOutcome{}, apperror.NewValidation("Metadata for debt payment is incomplete.")
	}
	customer, err := getCustomer(ctx, tx, meta.CustomerID)
	if err != nil {
		return SaleOutcome{}, err
	}
	customer.AmountPaid = customer.AmountPaid.Add(v.Amount)
	if err := tx.Sales().SaveCustomer(ctx, *customer); err != nil {
		return SaleOutcome{}, err
	}

	if isStoredRun(meta.RunID) {
		run, err := getRun(ctx, tx, meta.RunID)
		if err != nil {
			return SaleOutcome{}, err
		}
		run.TotalCollected = run.TotalCollected.Add(v.Amount)
		if err := tx.Transfers().SaveTransfer(ctx, *run); err != nil {
			return SaleOutcome{}, err
		}
	}

	date := v.PaidAt
	if date.IsZero() {
		date = s.now().UTC()
	}
	order := domain.Order{
		ID:            orderID,
		SalesRunID:    meta.RunID,
		CustomerID:    customer.ID,
		CustomerName:  customer.Name,
		Items:         []domain.OrderItem{},
		Total:         v.Amount,
		PaymentMethod: domain.PaymentPaystack,
		Date:          date,
		StaffID:       meta.StaffID,
		StaffName:     meta.StaffName,
		Status:        domain.OrderStatusCompleted,
		IsDebtPayment: true,
	}
	if err := tx.Sales().SaveOrder(ctx, order); err != nil {
		return SaleOutcome{}, err
	}
	return SaleOutcome{OrderID: order.ID}, nil
}
