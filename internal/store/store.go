package store

import (
	"context"
	"errors"

	"github.com/gabrielekerete60/bms/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	// ErrConflict means a document read by the transaction changed before commit.
	// The transaction body is re-executed.
	ErrConflict = errors.New("transaction conflict")
	// ErrTransient is returned once conflicts exhausted the retry budget.
	ErrTransient = errors.New("transaction aborted")
)

const (
	CollProducts            = "products"
	CollIngredients         = "ingredients"
	CollStaff               = "staff"
	CollRecipes             = "recipes"
	CollCustomers           = "customers"
	CollSuppliers           = "suppliers"
	CollTransfers           = "transfers"
	CollProductionBatches   = "production_batches"
	CollOrders              = "orders"
	CollPaymentConfirmation = "payment_confirmations"
	CollSales               = "sales"
	CollWasteLogs           = "waste_logs"
	CollIngredientStockLogs = "ingredient_stock_logs"
	CollProductionLogs      = "production_logs"
	CollIndirectCosts       = "indirectCosts"
	CollDirectCosts         = "directCosts"
	CollSupplyRequests      = "supply_requests"
	CollAuditLogs           = "audit_logs"
	CollUsers               = "users"
)

// PersonalStockCollection is the staff/{staffId}/personal_stock subcollection.
func PersonalStockCollection(staffID string) string {
	return CollStaff + "/" + staffID + "/personal_stock"
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

type Document struct {
	ID   string
	Data []byte
}

// Documents is the primitive document access of one transaction attempt.
type Documents interface {
	Get(ctx context.Context, collection string, id string) ([]byte, error)
	Put(ctx context.Context, collection string, id string, data []byte) error
	Delete(ctx context.Context, collection string, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
}

// Store runs fn inside an optimistic transaction. fn may run more than once and
// must not perform side effects outside tx.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Transfers() TransferRepository
	Batches() ProductionBatchRepository
	Stock() StockRepository
	Sales() SalesRepository
	Directory() DirectoryRepository
	Procurement() ProcurementRepository
	Journal() JournalRepository
}

type TransferRepository interface {
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	SaveTransfer(ctx context.Context, transfer domain.Transfer) error
	ListTransfers(ctx context.Context, filter domain.TransferFilter) ([]domain.Transfer, error)
}

type ProductionBatchRepository interface {
	GetBatch(ctx context.Context, id string) (*domain.ProductionBatch, error)
	SaveBatch(ctx context.Context, batch domain.ProductionBatch) error
	ListBatches(ctx context.Context, status domain.BatchStatus) ([]domain.ProductionBatch, error)
}

type StockRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product domain.Product) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetIngredient(ctx context.Context, id string) (*domain.Ingredient, error)
	SaveIngredient(ctx context.Context, ingredient domain.Ingredient) error
	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)
	GetPersonalStock(ctx context.Context, staffID string, productID string) (*domain.PersonalStock, error)
	SavePersonalStock(ctx context.Context, staffID string, stock domain.PersonalStock) error
	ListPersonalStock(ctx context.Context, staffID string) ([]domain.PersonalStock, error)
}

type SalesRepository interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	SaveOrder(ctx context.Context, order domain.Order) error
	ListOrdersByRun(ctx context.Context, runID string) ([]domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	GetConfirmation(ctx context.Context, id string) (*domain.PaymentConfirmation, error)
	SaveConfirmation(ctx context.Context, confirmation domain.PaymentConfirmation) error
	ListConfirmations(ctx context.Context, filter domain.ConfirmationFilter) ([]domain.PaymentConfirmation, error)
	DeleteConfirmation(ctx context.Context, id string) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	SaveCustomer(ctx context.Context, customer domain.Customer) error
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetDailySales(ctx context.Context, day string) (*domain.DailySales, error)
	SaveDailySales(ctx context.Context, day string, sales domain.DailySales) error
}

type DirectoryRepository interface {
	GetStaff(ctx context.Context, id string) (*domain.Staff, error)
	SaveStaff(ctx context.Context, staff domain.Staff) error
	ListStaff(ctx context.Context) ([]domain.Staff, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	SaveRecipe(ctx context.Context, recipe domain.Recipe) error
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	DeleteRecipe(ctx context.Context, id string) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	SaveUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type ProcurementRepository interface {
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	SaveSupplier(ctx context.Context, supplier domain.Supplier) error
	GetSupplyRequest(ctx context.Context, id string) (*domain.SupplyRequest, error)
	SaveSupplyRequest(ctx context.Context, request domain.SupplyRequest) error
	ListSupplyRequests(ctx context.Context, status domain.ConfirmationStatus) ([]domain.SupplyRequest, error)
}

// JournalRepository holds the append-only logs.
type JournalRepository interface {
	AddWasteLog(ctx context.Context, entry domain.WasteLog) error
	AddIngredientStockLog(ctx context.Context, entry domain.IngredientStockLog) error
	AddProductionLog(ctx context.Context, entry domain.ProductionLog) error
	AddIndirectCost(ctx context.Context, entry domain.IndirectCost) error
	AddDirectCost(ctx context.Context, entry domain.DirectCost) error
	AddAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
	ListWasteLogs(ctx context.Context) ([]domain.WasteLog, error)
	ListIngredientStockLogs(ctx context.Context) ([]domain.IngredientStockLog, error)
	ListProductionLogs(ctx context.Context) ([]domain.ProductionLog, error)
	ListIndirectCosts(ctx context.Context) ([]domain.IndirectCost, error)
	ListDirectCosts(ctx context.Context) ([]domain.DirectCost, error)
}
