package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

// centralRoles waste from the main inventory instead of personal stock.
var centralRoles = []string{domain.RoleManager, domain.RoleDeveloper, domain.RoleSupervisor, domain.RoleStorekeeper}

// ReportWaste writes off damaged or expired products. Every line is checked
// before any stock is removed.
func (s *Service) ReportWaste(ctx context.Context, req domain.ReportWasteRequest) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if len(req.Items) == 0 || strings.TrimSpace(req.Reason) == "" {
		return apperror.NewValidation("Please provide items and a reason for the waste.")
	}
	raw := make([]stockLine, 0, len(req.Items))
	for _, item := range req.Items {
		raw = append(raw, stockLine{ProductID: item.ProductID, Name: item.ProductName, Quantity: item.Quantity})
	}
	if err := validateLines(raw); err != nil {
		return err
	}
	lines := mergeLines(raw)
	central := slices.Contains(centralRoles, actor.Role)

	notFound := func(line stockLine) string {
		return fmt.Sprintf("Product with ID %s not found in relevant inventory.", line.ProductID)
	}
	notEnough := func(line stockLine) string {
		return fmt.Sprintf("Not enough stock for %s in your inventory.", line.Name)
	}

	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		name, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		products := make(map[string]*domain.Product, len(lines))
		for _, line := range lines {
			p, err := tx.Stock().GetProduct(ctx, line.ProductID)
			switch {
			case err == nil:
				products[line.ProductID] = p
			case !errors.Is(err, store.ErrNotFound):
				return err
			case central:
				return apperror.NewNotFound(notFound(line))
			}
		}

		if central {
			err = takeFromCentral(ctx, tx, lines, notEnough)
		} else {
			err = takeFromPersonal(ctx, tx, actor.StaffID, lines, personalCheck{missing: notFound, insufficient: notEnough})
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, item := range req.Items {
			entry := domain.WasteLog{
				ID:              xid.New("waste"),
				ProductID:       item.ProductID,
				ProductName:     item.ProductName,
				ProductCategory: item.ProductCategory,
				Quantity:        item.Quantity,
				Reason:          req.Reason,
				Notes:           req.Notes,
				StaffID:         actor.StaffID,
				StaffName:       name,
				Date:            now,
			}
			if p, ok := products[item.ProductID]; ok {
				entry.ProductCategory = p.Category
				if entry.ProductName == "" {
					entry.ProductName = p.Name
				}
			}
			if err := tx.Journal().AddWasteLog(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "waste_report", "waste_log", "", fmt.Sprintf("reason=%s,central=%t,lines=%d", req.Reason, central, len(lines)))
	return nil
}

// RequestStockIncrease asks for an ingredient purchase from a supplier.
func (s *Service) RequestStockIncrease(ctx context.Context, req domain.SupplyRequestCreate) (domain.SupplyRequest, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.SupplyRequest{}, err
	}
	if req.IngredientID == "" || req.SupplierID == "" || !req.Quantity.IsPositive() {
		return domain.SupplyRequest{}, apperror.NewValidation("Please choose an ingredient, a supplier and a positive quantity.")
	}

	var request domain.SupplyRequest
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		ingredient, err := tx.Stock().GetIngredient(ctx, req.IngredientID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		supplier, serr := tx.Procurement().GetSupplier(ctx, req.SupplierID)
		if serr != nil && !errors.Is(serr, store.ErrNotFound) {
			return serr
		}
		if ingredient == nil || supplier == nil {
			return apperror.NewNotFound("Invalid ingredient or supplier.")
		}
		name, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		request = domain.SupplyRequest{
			ID:             xid.New("supply"),
			IngredientID:   ingredient.ID,
			IngredientName: ingredient.Name,
			Quantity:       req.Quantity,
			SupplierID:     supplier.ID,
			SupplierName:   supplier.Name,
			RequesterID:    actor.StaffID,
			RequesterName:  name,
			Status:         domain.ConfirmationPending,
			RequestDate:    s.now().UTC(),
		}
		return tx.Procurement().SaveSupplyRequest(ctx, request)
	})
	if err != nil {
		return domain.SupplyRequest{}, err
	}

	s.logAudit(ctx, "supply_request", "supply_request", request.ID, "ingredient="+request.IngredientID)
	return request, nil
}

func pendingSupplyRequest(ctx context.Context, tx store.Tx, id string, target domain.ConfirmationStatus) (*domain.SupplyRequest, error) {
	request, err := tx.Procurement().GetSupplyRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Request not found or already processed.")
	}
	if err != nil {
		return nil, err
	}
	if err := domain.ConfirmationMachine.Check(request.Status, target); err != nil {
		return nil, transitionError(err, "Request not found or already processed.")
	}
	return request, nil
}

// ApproveStockIncrease receives the purchase: ingredient stock and unit cost,
// the supplier balance, the direct cost and the stock log are all written in
// one transaction.
func (s *Service) ApproveStockIncrease(ctx context.Context, requestID string, approval domain.SupplyApproval) error {
	actor, err := s.requireRole(ctx, approverRoles...)
	if err != nil {
		return err
	}
	if approval.CostPerUnit.IsNegative() || approval.TotalCost.IsNegative() {
		return apperror.NewValidation("Costs cannot be negative.")
	}

	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		request, err := pendingSupplyRequest(ctx, tx, requestID, domain.ConfirmationApproved)
		if err != nil {
			return err
		}
		ingredient, err := tx.Stock().GetIngredient(ctx, request.IngredientID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Invalid ingredient or supplier.")
		}
		if err != nil {
			return err
		}
		supplier, err := tx.Procurement().GetSupplier(ctx, request.SupplierID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Invalid ingredient or supplier.")
		}
		if err != nil {
			return err
		}
		approver, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		total := approval.TotalCost
		if total.IsZero() {
			total = approval.CostPerUnit.Mul(request.Quantity)
		}
		now := s.now().UTC()

		ingredient.Stock = ingredient.Stock.Add(request.Quantity)
		ingredient.CostPerUnit = approval.CostPerUnit
		if err := tx.Stock().SaveIngredient(ctx, *ingredient); err != nil {
			return err
		}
		supplier.AmountOwed = supplier.AmountOwed.Add(total)
		if err := tx.Procurement().SaveSupplier(ctx, *supplier); err != nil {
			return err
		}
		if err := tx.Journal().AddDirectCost(ctx, domain.DirectCost{
			ID:          xid.New("cost"),
			Description: fmt.Sprintf("Purchase of %s from %s", ingredient.Name, supplier.Name),
			Category:    "Ingredients",
			Quantity:    request.Quantity,
			Total:       total,
			Date:        now,
		}); err != nil {
			return err
		}
		if err := tx.Journal().AddIngredientStockLog(ctx, domain.IngredientStockLog{
			ID:             xid.New("islog"),
			IngredientID:   ingredient.ID,
			IngredientName: ingredient.Name,
			Change:         request.Quantity,
			Reason:         "Purchase from " + supplier.Name,
			Date:           now,
			StaffName:      approver,
			LogRefID:       request.ID,
		}); err != nil {
			return err
		}

		cost := approval.CostPerUnit
		request.Status = domain.ConfirmationApproved
		request.CostPerUnit = &cost
		request.TotalCost = &total
		request.ApproverID = actor.StaffID
		request.ApproverName = approver
		request.ApprovedDate = &now
		return tx.Procurement().SaveSupplyRequest(ctx, *request)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "supply_approve", "supply_request", requestID, "")
	return nil
}

func (s *Service) DeclineStockIncrease(ctx context.Context, requestID string) error {
	actor, err := s.requireRole(ctx, approverRoles...)
	if err != nil {
		return err
	}
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		request, err := pendingSupplyRequest(ctx, tx, requestID, domain.ConfirmationDeclined)
		if err != nil {
			return err
		}
		approver, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		request.Status = domain.ConfirmationDeclined
		request.ApproverID = actor.StaffID
		request.ApproverName = approver
		request.ApprovedDate = &now
		return tx.Procurement().SaveSupplyRequest(ctx, *request)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "supply_decline", "supply_request", requestID, "")
	return nil
}

func (s *Service) PendingSupplyRequests(ctx context.Context) ([]domain.SupplyRequest, error) {
	var out []domain.SupplyRequest
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Procurement().ListSupplyRequests(ctx, domain.ConfirmationPending)
		return err
	})
	return out, err
}

func (s *Service) ListWasteLogs(ctx context.Context) ([]domain.WasteLog, error) {
	var out []domain.WasteLog
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Journal().ListWasteLogs(ctx)
		return err
	})
	return out, err
}

// AuditLogs returns the newest audit entries with their details decompressed.
func (s *Service) AuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if s.audit == nil {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs, err := s.audit.List(ctx, limit)
	if err != nil {
		s.log.Errorw("list audit logs failed", "error", err)
		return nil, apperror.NewInternal(err)
	}
	return logs, nil
}
