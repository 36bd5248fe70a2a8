package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
)

// stockLine is a requested movement of one product. Lines are merged per
// product so a bundle naming the same product twice is checked against the
// combined quantity.
type stockLine struct {
	ProductID string
	Name      string
	Quantity  int
}

func mergeLines(lines []stockLine) []stockLine {
	merged := make([]stockLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func transferLines(items []domain.TransferItem) []stockLine {
	lines := make([]stockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, stockLine{ProductID: item.ProductID, Name: item.ProductName, Quantity: item.Quantity})
	}
	return mergeLines(lines)
}

func orderLines(items []domain.OrderItem) []stockLine {
	lines := make([]stockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, stockLine{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
	}
	return mergeLines(lines)
}

func validateLines(lines []stockLine) error {
	for _, line := range lines {
		if line.ProductID == "" || line.Quantity <= 0 {
			return apperror.NewValidation("Every item needs a product and a positive quantity.")
		}
	}
	return nil
}

func insufficient(message string, line stockLine, available int) error {
	return apperror.NewInsufficientStock(message).
		WithDetail("productId", line.ProductID).
		WithDetail("requested", line.Quantity).
		WithDetail("available", available)
}

// takeFromCentral checks every line against central product stock before
// decrementing any of them.
func takeFromCentral(ctx context.Context, tx store.Tx, lines []stockLine, message func(stockLine) string) error {
	products := make([]*domain.Product, len(lines))
	for i, line := range lines {
		p, err := tx.Stock().GetProduct(ctx, line.ProductID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		available := 0
		if p != nil {
			available = p.Stock
		}
		if p == nil || available < line.Quantity {
			return insufficient(message(line), line, available)
		}
		products[i] = p
	}
	for i, line := range lines {
		p := products[i]
		p.Stock -= line.Quantity
		if err := tx.Stock().SaveProduct(ctx, *p); err != nil {
			return err
		}
	}
	return nil
}

func addToCentral(ctx context.Context, tx store.Tx, lines []stockLine) error {
	for _, line := range lines {
		p, err := tx.Stock().GetProduct(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound(fmt.Sprintf("Product %s not found in main inventory.", line.Name))
		}
		if err != nil {
			return err
		}
		p.Stock += line.Quantity
		if err := tx.Stock().SaveProduct(ctx, *p); err != nil {
			return err
		}
	}
	return nil
}

// personalCheck controls the messages takeFromPersonal reports.
type personalCheck struct {
	// missing, when set, reports an absent stock record as NotFound
	// instead of as zero stock.
	missing      func(stockLine) string
	insufficient func(stockLine) string
}

func takeFromPersonal(ctx context.Context, tx store.Tx, staffID string, lines []stockLine, check personalCheck) error {
	stocks := make([]*domain.PersonalStock, len(lines))
	for i, line := range lines {
		ps, err := tx.Stock().GetPersonalStock(ctx, staffID, line.ProductID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if ps == nil && check.missing != nil {
			return apperror.NewNotFound(check.missing(line)).WithDetail("productId", line.ProductID)
		}
		available := 0
		if ps != nil {
			available = ps.Stock
		}
		if ps == nil || available < line.Quantity {
			return insufficient(check.insufficient(line), line, available)
		}
		stocks[i] = ps
	}
	for i, line := range lines {
		ps := stocks[i]
		ps.Stock -= line.Quantity
		if err := tx.Stock().SavePersonalStock(ctx, staffID, *ps); err != nil {
			return err
		}
	}
	return nil
}

func addToPersonal(ctx context.Context, tx store.Tx, staffID string, lines []stockLine) error {
	for _, line := range lines {
		ps, err := tx.Stock().GetPersonalStock(ctx, staffID, line.ProductID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			ps = &domain.PersonalStock{ProductID: line.ProductID, ProductName: line.Name}
		case err != nil:
			return err
		}
		ps.Stock += line.Quantity
		if err := tx.Stock().SavePersonalStock(ctx, staffID, *ps); err != nil {
			return err
		}
	}
	return nil
}

func notEnoughFor(line stockLine) string {
	return fmt.Sprintf("Not enough stock for %s.", line.Name)
}

func stockRecordMissing(stockLine) string {
	return "Stock record not found for an item."
}

func notEnoughInMain(line stockLine) string {
	return fmt.Sprintf("Not enough stock for %s in main inventory.", line.Name)
}

// ingredientLine is a requested movement of one ingredient.
type ingredientLine struct {
	IngredientID string
	Name         string
	Unit         string
	Quantity     decimal.Decimal
}

func mergeIngredientLines(lines []ingredientLine) []ingredientLine {
	merged := make([]ingredientLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.IngredientID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(line.Quantity)
			continue
		}
		index[line.IngredientID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func sumOrders(orders []domain.Order, keep func(domain.Order) bool) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if keep(o) {
			total = total.Add(o.Total)
		}
	}
	return total
}
