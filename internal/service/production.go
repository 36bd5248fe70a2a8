package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gabrielekerete60/bms/internal/apperror"
	"github.com/gabrielekerete60/bms/internal/domain"
	"github.com/gabrielekerete60/bms/internal/store"
	"github.com/gabrielekerete60/bms/internal/xid"
)

var half = decimal.NewFromInt(2)

// StartBatch opens a production batch for a recipe. Ingredients are listed at
// the requested quantity; nothing is taken from stock until approval.
func (s *Service) StartBatch(ctx context.Context, req domain.StartBatchRequest) (domain.ProductionBatch, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.ProductionBatch{}, err
	}
	if strings.TrimSpace(req.RecipeID) == "" || req.QuantityToProduce <= 0 {
		return domain.ProductionBatch{}, apperror.NewValidation("Please choose a recipe and a quantity to produce.")
	}
	switch req.BatchSize {
	case "", domain.BatchSizeFull, domain.BatchSizeHalf:
	default:
		return domain.ProductionBatch{}, apperror.NewValidation("Batch size must be full or half.")
	}

	var batch domain.ProductionBatch
	var name string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		recipe, err := tx.Directory().GetRecipe(ctx, req.RecipeID)
		if errors.Is(err, store.ErrNotFound) {
			return apperror.NewNotFound("Recipe not found.")
		}
		if err != nil {
			return err
		}
		name, err = staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		ingredients := make([]domain.BatchIngredient, 0, len(recipe.Ingredients))
		for _, ri := range recipe.Ingredients {
			qty := ri.Quantity
			if req.BatchSize == domain.BatchSizeHalf {
				qty = qty.Div(half)
			}
			ingredients = append(ingredients, domain.BatchIngredient{
				IngredientID:   ri.IngredientID,
				IngredientName: ri.IngredientName,
				Quantity:       qty,
				Unit:           ri.Unit,
			})
		}

		batch = domain.ProductionBatch{
			ID:                xid.New("batch"),
			RecipeID:          recipe.ID,
			RecipeName:        recipe.Name,
			ProductID:         recipe.ProductID,
			ProductName:       recipe.ProductName,
			RequestedByID:     actor.StaffID,
			RequestedByName:   name,
			QuantityToProduce: req.QuantityToProduce,
			Status:            domain.BatchPendingApproval,
			CreatedAt:         s.now().UTC(),
			Ingredients:       ingredients,
		}
		return tx.Batches().SaveBatch(ctx, batch)
	})
	if err != nil {
		return domain.ProductionBatch{}, err
	}

	s.logProduction(ctx, actor, name, "Batch Requested", "Requested a batch of "+batch.RecipeName)
	s.logAudit(ctx, "batch_start", "production_batch", batch.ID, "recipe="+batch.RecipeID)
	return batch, nil
}

func getBatch(ctx context.Context, tx store.Tx, id string) (*domain.ProductionBatch, error) {
	batch, err := tx.Batches().GetBatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("Production batch not found.")
	}
	return batch, err
}

// ApproveIngredientRequest releases the batch's ingredients from stock and
// moves it into production. When ingredients is empty the batch's own list is
// used. Either every line is taken or none is.
func (s *Service) ApproveIngredientRequest(ctx context.Context, batchID string, ingredients []domain.BatchIngredient) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	var batch *domain.ProductionBatch
	var approver string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, err = getBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if err := domain.BatchMachine.Check(batch.Status, domain.BatchInProduction); err != nil {
			return transitionError(err, "Batch is not pending approval.")
		}
		approver, err = staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		requested := ingredients
		if len(requested) == 0 {
			requested = batch.Ingredients
		}
		lines := make([]ingredientLine, 0, len(requested))
		for _, ing := range requested {
			if ing.IngredientID == "" || !ing.Quantity.IsPositive() {
				return apperror.NewValidation("Every ingredient needs an id and a positive quantity.")
			}
			lines = append(lines, ingredientLine{IngredientID: ing.IngredientID, Name: ing.IngredientName, Unit: ing.Unit, Quantity: ing.Quantity})
		}
		lines = mergeIngredientLines(lines)

		stocks := make(map[string]*domain.Ingredient, len(lines))
		for _, line := range lines {
			ing, err := tx.Stock().GetIngredient(ctx, line.IngredientID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			name := line.Name
			if ing != nil {
				name = ing.Name
			}
			if ing == nil || ing.Stock.LessThan(line.Quantity) {
				available := decimal.Zero
				if ing != nil {
					available = ing.Stock
				}
				return apperror.NewInsufficientStock(fmt.Sprintf("Not enough stock for %s.", name)).
					WithDetail("ingredientId", line.IngredientID).
					WithDetail("requested", line.Quantity.String()).
					WithDetail("available", available.String())
			}
			stocks[line.IngredientID] = ing
		}

		opening := make(map[string]decimal.Decimal, len(lines))
		closing := make(map[string]decimal.Decimal, len(lines))
		for _, line := range lines {
			ing := stocks[line.IngredientID]
			opening[line.IngredientID] = ing.Stock
			ing.Stock = ing.Stock.Sub(line.Quantity)
			closing[line.IngredientID] = ing.Stock
			if err := tx.Stock().SaveIngredient(ctx, *ing); err != nil {
				return err
			}
		}

		approved := make([]domain.BatchIngredient, 0, len(requested))
		for _, ing := range requested {
			open, closed := opening[ing.IngredientID], closing[ing.IngredientID]
			ing.OpeningStock = &open
			ing.ClosingStock = &closed
			if ing.IngredientName == "" {
				ing.IngredientName = stocks[ing.IngredientID].Name
			}
			if ing.Unit == "" {
				ing.Unit = stocks[ing.IngredientID].Unit
			}
			approved = append(approved, ing)
		}

		now := s.now().UTC()
		batch.Ingredients = approved
		batch.Status = domain.BatchInProduction
		batch.ApprovedAt = &now
		return tx.Batches().SaveBatch(ctx, *batch)
	})
	if err != nil {
		return err
	}

	total := decimal.Zero
	for _, ing := range batch.Ingredients {
		total = total.Add(ing.Quantity)
	}
	entry := domain.IngredientStockLog{
		ID:             xid.New("islog"),
		IngredientName: "Production Batch: " + batch.ProductName,
		Change:         total.Neg(),
		Reason:         "Production: " + batch.ProductName,
		Date:           s.now().UTC(),
		StaffName:      batch.RequestedByName,
		LogRefID:       batch.ID,
	}
	s.afterCommit(ctx, "ingredient_stock_log", func(ctx context.Context, tx store.Tx) error {
		return tx.Journal().AddIngredientStockLog(ctx, entry)
	})
	s.logProduction(ctx, actor, approver, "Batch Approved",
		fmt.Sprintf("Approved batch for %d of %s: %s", batch.QuantityToProduce, batch.ProductName, batch.ID))
	s.logAudit(ctx, "batch_approve", "production_batch", batch.ID, "")
	return nil
}

func (s *Service) DeclineBatch(ctx context.Context, batchID string) error {
	return s.closeBatch(ctx, batchID, domain.BatchDeclined, "Batch is not pending approval.", "Batch Declined", "Declined")
}

// CancelBatch withdraws a batch that has not been approved yet.
func (s *Service) CancelBatch(ctx context.Context, batchID string) error {
	return s.closeBatch(ctx, batchID, domain.BatchCancelled, "Only pending batches can be cancelled.", "Batch Cancelled", "Cancelled")
}

func (s *Service) closeBatch(ctx context.Context, batchID string, target domain.BatchStatus, invalid string, action string, verb string) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}

	var batch *domain.ProductionBatch
	var name string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, err = getBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if err := domain.BatchMachine.Check(batch.Status, target); err != nil {
			return transitionError(err, invalid)
		}
		name, err = staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		batch.Status = target
		return tx.Batches().SaveBatch(ctx, *batch)
	})
	if err != nil {
		return err
	}

	s.logProduction(ctx, actor, name, action,
		fmt.Sprintf("%s batch for %d of %s: %s", verb, batch.QuantityToProduce, batch.ProductName, batch.ID))
	s.logAudit(ctx, "batch_"+string(target), "production_batch", batchID, "")
	return nil
}

// CompleteBatch closes a batch in production. Produced goods go back to the
// storekeeper as a pending production-return transfer; wasted goods are only
// logged since their ingredients were already consumed at approval.
func (s *Service) CompleteBatch(ctx context.Context, batchID string, req domain.CompleteBatchRequest) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	for _, item := range append(append([]domain.ProducedItem{}, req.ProducedItems...), req.WastedItems...) {
		if item.ProductID == "" || item.Quantity <= 0 {
			return apperror.NewValidation("Every item needs a product and a positive quantity.")
		}
	}

	var produced int
	var name string
	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, err := getBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if err := domain.BatchMachine.Check(batch.Status, domain.BatchCompleted); err != nil {
			return transitionError(err, "Batch is not in production.")
		}
		storekeeper, err := getStaff(ctx, tx, req.StorekeeperID, "Target storekeeper does not exist.")
		if err != nil {
			return err
		}
		name, err = staffName(ctx, tx, actor)
		if err != nil {
			return err
		}

		produced = 0
		items := make([]domain.TransferItem, 0, len(req.ProducedItems))
		for _, item := range req.ProducedItems {
			produced += item.Quantity
			items = append(items, domain.TransferItem{ProductID: item.ProductID, ProductName: item.ProductName, Quantity: item.Quantity})
		}
		wasted := 0
		for _, item := range req.WastedItems {
			wasted += item.Quantity
		}

		now := s.now().UTC()
		batch.Status = domain.BatchCompleted
		batch.SuccessfullyProduced = &produced
		batch.Wasted = &wasted
		batch.CompletedAt = &now
		if err := tx.Batches().SaveBatch(ctx, *batch); err != nil {
			return err
		}

		if len(items) > 0 {
			transfer := domain.Transfer{
				ID:            xid.New("transfer"),
				Kind:          domain.KindProductionReturn,
				FromStaffID:   actor.StaffID,
				FromStaffName: name,
				ToStaffID:     storekeeper.ID,
				ToStaffName:   storekeeper.Name,
				Items:         items,
				Date:          now,
				Status:        domain.TransferPending,
				Notes:         fmt.Sprintf("%s %s", domain.ProductionReturnNote, batch.ID),
			}
			if err := tx.Transfers().SaveTransfer(ctx, transfer); err != nil {
				return err
			}
		}

		for _, item := range req.WastedItems {
			category := ""
			p, err := tx.Stock().GetProduct(ctx, item.ProductID)
			switch {
			case err == nil:
				category = p.Category
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
			entry := domain.WasteLog{
				ID:              xid.New("waste"),
				ProductID:       item.ProductID,
				ProductName:     item.ProductName,
				ProductCategory: category,
				Quantity:        item.Quantity,
				Reason:          "Production Waste",
				Notes:           "From production batch " + batch.ID,
				StaffID:         actor.StaffID,
				StaffName:       name,
				Date:            now,
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

	s.logProduction(ctx, actor, name, "Batch Completed",
		fmt.Sprintf("Completed batch of %s with %d produced items.", batchID, produced))
	s.logAudit(ctx, "batch_complete", "production_batch", batchID, fmt.Sprintf("produced=%d", produced))
	return nil
}

// ReturnUnusedIngredients puts leftover ingredients back into stock.
func (s *Service) ReturnUnusedIngredients(ctx context.Context, items []domain.IngredientReturnItem) error {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return apperror.NewValidation("No items to return.")
	}
	lines := make([]ingredientLine, 0, len(items))
	for _, item := range items {
		if item.IngredientID == "" || !item.Quantity.IsPositive() {
			return apperror.NewValidation("Every ingredient needs an id and a positive quantity.")
		}
		lines = append(lines, ingredientLine{IngredientID: item.IngredientID, Name: item.IngredientName, Quantity: item.Quantity})
	}
	lines = mergeIngredientLines(lines)

	err = s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		name, err := staffName(ctx, tx, actor)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for _, line := range lines {
			ing, err := tx.Stock().GetIngredient(ctx, line.IngredientID)
			if errors.Is(err, store.ErrNotFound) {
				return apperror.NewNotFound(fmt.Sprintf("Ingredient %s not found.", line.Name))
			}
			if err != nil {
				return err
			}
			ing.Stock = ing.Stock.Add(line.Quantity)
			if err := tx.Stock().SaveIngredient(ctx, *ing); err != nil {
				return err
			}
			entry := domain.IngredientStockLog{
				ID:             xid.New("islog"),
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Change:         line.Quantity,
				Reason:         "Returned unused from production",
				Date:           now,
				StaffName:      name,
				LogRefID:       "manual-return-" + actor.StaffID,
			}
			if err := tx.Journal().AddIngredientStockLog(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "ingredient_return", "ingredient", "", fmt.Sprintf("lines=%d", len(lines)))
	return nil
}

func (s *Service) GetBatch(ctx context.Context, batchID string) (domain.ProductionBatch, error) {
	var out domain.ProductionBatch
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch, err := getBatch(ctx, tx, batchID)
		if err != nil {
			return err
		}
		out = *batch
		return nil
	})
	return out, err
}

// ListBatches lists batches newest first. An empty status lists all of them.
func (s *Service) ListBatches(ctx context.Context, status domain.BatchStatus) ([]domain.ProductionBatch, error) {
	var out []domain.ProductionBatch
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Batches().ListBatches(ctx, status)
		return err
	})
	return out, err
}

func (s *Service) ListProductionLogs(ctx context.Context) ([]domain.ProductionLog, error) {
	var out []domain.ProductionLog
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Journal().ListProductionLogs(ctx)
		return err
	})
	return out, err
}

func (s *Service) ListIngredientStockLogs(ctx context.Context) ([]domain.IngredientStockLog, error) {
	var out []domain.IngredientStockLog
	err := s.run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Journal().ListIngredientStockLogs(ctx)
		return err
	})
	return out, err
}
