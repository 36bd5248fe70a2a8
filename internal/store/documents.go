package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gabrielekerete60/bms/internal/domain"
)

// NewTx builds the typed repositories over the documents of one transaction attempt.
func NewTx(docs Documents) Tx {
	return &docTx{docs: docs}
}

type docTx struct {
	docs Documents
}

func (t *docTx) Transfers() TransferRepository      { return t }
func (t *docTx) Batches() ProductionBatchRepository  { return t }
func (t *docTx) Stock() StockRepository              { return t }
func (t *docTx) Sales() SalesRepository              { return t }
func (t *docTx) Directory() DirectoryRepository      { return t }
func (t *docTx) Procurement() ProcurementRepository  { return t }
func (t *docTx) Journal() JournalRepository          { return t }

func getDoc[T any](ctx context.Context, docs Documents, collection string, id string) (*T, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	raw, err := docs.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &out, nil
}

func putDoc(ctx context.Context, docs Documents, collection string, id string, value any) error {
	if id == "" {
		return fmt.Errorf("put %s: empty document id", collection)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return docs.Put(ctx, collection, id, raw)
}

func queryDocs[T any](ctx context.Context, docs Documents, collection string, filters ...Filter) ([]T, error) {
	found, err := docs.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(found))
	for _, doc := range found {
		var item T
		if err := json.Unmarshal(doc.Data, &item); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, doc.ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// MatchFilters reports whether the JSON document satisfies every filter.
// Values are compared in their JSON encoding.
func MatchFilters(data []byte, filters []Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false, err
	}
	for _, f := range filters {
		want, err := json.Marshal(f.Value)
		if err != nil {
			return false, err
		}
		got, ok := fields[f.Field]
		if !ok || !bytes.Equal(bytes.TrimSpace(got), want) {
			return false, nil
		}
	}
	return true, nil
}

func (t *docTx) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return getDoc[domain.Transfer](ctx, t.docs, CollTransfers, id)
}

func (t *docTx) SaveTransfer(ctx context.Context, transfer domain.Transfer) error {
	return putDoc(ctx, t.docs, CollTransfers, transfer.ID, transfer)
}

func (t *docTx) ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.Transfer, error) {
	filters := make([]Filter, 0, 3)
	if filter.ToStaffID != "" {
		filters = append(filters, Where("to_staff_id", filter.ToStaffID))
	}
	if filter.FromStaffID != "" {
		filters = append(filters, Where("from_staff_id", filter.FromStaffID))
	}
	if filter.Status != "" {
		filters = append(filters, Where("status", filter.Status))
	}
	transfers, err := queryDocs[domain.Transfer](ctx, t.docs, CollTransfers, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].Date.After(transfers[j].Date)
	})
	return transfers, nil
}

func (t *docTx) GetBatch(ctx context.Context, id string) (*domain.ProductionBatch, error) {
	return getDoc[domain.ProductionBatch](ctx, t.docs, CollProductionBatches, id)
}

func (t *docTx) SaveBatch(ctx context.Context, batch domain.ProductionBatch) error {
	return putDoc(ctx, t.docs, CollProductionBatches, batch.ID, batch)
}

func (t *docTx) ListBatches(ctx context.Context, status domain.BatchStatus) ([]domain.ProductionBatch, error) {
	var filters []Filter
	if status != "" {
		filters = append(filters, Where("status", status))
	}
	batches, err := queryDocs[domain.ProductionBatch](ctx, t.docs, CollProductionBatches, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	return batches, nil
}

func (t *docTx) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getDoc[domain.Product](ctx, t.docs, CollProducts, id)
}

func (t *docTx) SaveProduct(ctx context.Context, product domain.Product) error {
	return putDoc(ctx, t.docs, CollProducts, product.ID, product)
}

func (t *docTx) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return queryDocs[domain.Product](ctx, t.docs, CollProducts)
}

func (t *docTx) GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error) {
	return getDoc[domain.Ingredient](ctx, t.docs, CollIngredients, id)
}

func (t *docTx) SaveIngredient(ctx context.Context, ingredient domain.Ingredient) error {
	return putDoc(ctx, t.docs, CollIngredients, ingredient.ID, ingredient)
}

func (t *docTx) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	return queryDocs[domain.Ingredient](ctx, t.docs, CollIngredients)
}

func (t *docTx) GetPersonalStock(ctx context.Context, staffID string, productID string) (*domain.PersonalStock, error) {
	if staffID == "" {
		return nil, ErrNotFound
	}
	return getDoc[domain.PersonalStock](ctx, t.docs, PersonalStockCollection(staffID), productID)
}

func (t *docTx) SavePersonalStock(ctx context.Context, staffID string, stock domain.PersonalStock) error {
	if staffID == "" {
		return fmt.Errorf("save personal stock: empty staff id")
	}
	return putDoc(ctx, t.docs, PersonalStockCollection(staffID), stock.ProductID, stock)
}

func (t *docTx) ListPersonalStock(ctx context.Context, staffID string) ([]domain.PersonalStock, error) {
	return queryDocs[domain.PersonalStock](ctx, t.docs, PersonalStockCollection(staffID))
}

func (t *docTx) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return getDoc[domain.Order](ctx, t.docs, CollOrders, id)
}

func (t *docTx) SaveOrder(ctx context.Context, order domain.Order) error {
	return putDoc(ctx, t.docs, CollOrders, order.ID, order)
}

func (t *docTx) ListOrdersByRun(ctx context.Context, runID string) ([]domain.Order, error) {
	return queryDocs[domain.Order](ctx, t.docs, CollOrders, Where("salesRunId", runID))
}

func (t *docTx) DeleteOrder(ctx context.Context, id string) error {
	return t.docs.Delete(ctx, CollOrders, id)
}

func (t *docTx) GetConfirmation(ctx context.Context, id string) (*domain.PaymentConfirmation, error) {
	return getDoc[domain.PaymentConfirmation](ctx, t.docs, CollPaymentConfirmation, id)
}

func (t *docTx) SaveConfirmation(ctx context.Context, confirmation domain.PaymentConfirmation) error {
	return putDoc(ctx, t.docs, CollPaymentConfirmation, confirmation.ID, confirmation)
}

func (t *docTx) ListConfirmations(ctx context.Context, filter domain.ConfirmationFilter) ([]domain.PaymentConfirmation, error) {
	var filters []Filter
	if filter.RunID != "" {
		filters = append(filters, Where("runId", filter.RunID))
	}
	if filter.Status != "" {
		filters = append(filters, Where("status", filter.Status))
	}
	confirmations, err := queryDocs[domain.PaymentConfirmation](ctx, t.docs, CollPaymentConfirmation, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(confirmations, func(i, j int) bool {
		return confirmations[i].Date.After(confirmations[j].Date)
	})
	return confirmations, nil
}

func (t *docTx) DeleteConfirmation(ctx context.Context, id string) error {
	return t.docs.Delete(ctx, CollPaymentConfirmation, id)
}

func (t *docTx) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getDoc[domain.Customer](ctx, t.docs, CollCustomers, id)
}

func (t *docTx) SaveCustomer(ctx context.Context, customer domain.Customer) error {
	return putDoc(ctx, t.docs, CollCustomers, customer.ID, customer)
}

func (t *docTx) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return queryDocs[domain.Customer](ctx, t.docs, CollCustomers)
}

func (t *docTx) GetDailySales(ctx context.Context, day string) (*domain.DailySales, error) {
	return getDoc[domain.DailySales](ctx, t.docs, CollSales, day)
}

func (t *docTx) SaveDailySales(ctx context.Context, day string, sales domain.DailySales) error {
	return putDoc(ctx, t.docs, CollSales, day, sales)
}

func (t *docTx) GetStaff(ctx context.Context, id string) (*domain.Staff, error) {
	return getDoc[domain.Staff](ctx, t.docs, CollStaff, id)
}

func (t *docTx) SaveStaff(ctx context.Context, staff domain.Staff) error {
	return putDoc(ctx, t.docs, CollStaff, staff.ID, staff)
}

func (t *docTx) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	return queryDocs[domain.Staff](ctx, t.docs, CollStaff)
}

func (t *docTx) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	return getDoc[domain.Recipe](ctx, t.docs, CollRecipes, id)
}

func (t *docTx) SaveRecipe(ctx context.Context, recipe domain.Recipe) error {
	return putDoc(ctx, t.docs, CollRecipes, recipe.ID, recipe)
}

func (t *docTx) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	return queryDocs[domain.Recipe](ctx, t.docs, CollRecipes)
}

func (t *docTx) DeleteRecipe(ctx context.Context, id string) error {
	return t.docs.Delete(ctx, CollRecipes, id)
}

func (t *docTx) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	return getDoc[domain.UserAccount](ctx, t.docs, CollUsers, username)
}

func (t *docTx) SaveUser(ctx context.Context, user domain.UserAccount) error {
	return putDoc(ctx, t.docs, CollUsers, user.Username, user)
}

func (t *docTx) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return queryDocs[domain.UserAccount](ctx, t.docs, CollUsers)
}

func (t *docTx) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return getDoc[domain.Supplier](ctx, t.docs, CollSuppliers, id)
}

func (t *docTx) SaveSupplier(ctx context.Context, supplier domain.Supplier) error {
	return putDoc(ctx, t.docs, CollSuppliers, supplier.ID, supplier)
}

func (t *docTx) GetSupplyRequest(ctx context.Context, id string) (*domain.SupplyRequest, error) {
	return getDoc[domain.SupplyRequest](ctx, t.docs, CollSupplyRequests, id)
}

func (t *docTx) SaveSupplyRequest(ctx context.Context, request domain.SupplyRequest) error {
	return putDoc(ctx, t.docs, CollSupplyRequests, request.ID, request)
}

func (t *docTx) ListSupplyRequests(ctx context.Context, status domain.ConfirmationStatus) ([]domain.SupplyRequest, error) {
	var filters []Filter
	if status != "" {
		filters = append(filters, Where("status", status))
	}
	return queryDocs[domain.SupplyRequest](ctx, t.docs, CollSupplyRequests, filters...)
}

func (t *docTx) AddWasteLog(ctx context.Context, entry domain.WasteLog) error {
	return putDoc(ctx, t.docs, CollWasteLogs, entry.ID, entry)
}

func (t *docTx) AddIngredientStockLog(ctx context.Context, entry domain.IngredientStockLog) error {
	return putDoc(ctx, t.docs, CollIngredientStockLogs, entry.ID, entry)
}

func (t *docTx) AddProductionLog(ctx context.Context, entry domain.ProductionLog) error {
	return putDoc(ctx, t.docs, CollProductionLogs, entry.ID, entry)
}

func (t *docTx) AddIndirectCost(ctx context.Context, entry domain.IndirectCost) error {
	return putDoc(ctx, t.docs, CollIndirectCosts, entry.ID, entry)
}

func (t *docTx) AddDirectCost(ctx context.Context, entry domain.DirectCost) error {
	return putDoc(ctx, t.docs, CollDirectCosts, entry.ID, entry)
}

func (t *docTx) AddAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return putDoc(ctx, t.docs, CollAuditLogs, entry.ID, entry)
}

func (t *docTx) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	logs, err := queryDocs[domain.AuditLog](ctx, t.docs, CollAuditLogs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (t *docTx) ListWasteLogs(ctx context.Context) ([]domain.WasteLog, error) {
	return queryDocs[domain.WasteLog](ctx, t.docs, CollWasteLogs)
}

func (t *docTx) ListIngredientStockLogs(ctx context.Context) ([]domain.IngredientStockLog, error) {
	return queryDocs[domain.IngredientStockLog](ctx, t.docs, CollIngredientStockLogs)
}

func (t *docTx) ListProductionLogs(ctx context.Context) ([]domain.ProductionLog, error) {
	logs, err := queryDocs[domain.ProductionLog](ctx, t.docs, CollProductionLogs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	return logs, nil
}

func (t *docTx) ListIndirectCosts(ctx context.Context) ([]domain.IndirectCost, error) {
	return queryDocs[domain.IndirectCost](ctx, t.docs, CollIndirectCosts)
}

func (t *docTx) ListDirectCosts(ctx context.Context) ([]domain.DirectCost, error) {
	return queryDocs[domain.DirectCost](ctx, t.docs, CollDirectCosts)
}
