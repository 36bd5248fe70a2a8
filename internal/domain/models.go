package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Persisted amounts are JSON numbers, as the reporting layer reads them.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	RoleManager     = "Manager"
	RoleSupervisor  = "Supervisor"
	RoleStorekeeper = "Storekeeper"
	RoleDeveloper   = "Developer"
	RoleAccountant  = "Accountant"
	RoleChiefBaker  = "Chief Baker"
	RoleBaker       = "Baker"
	RoleDelivery    = "Delivery Staff"
	RoleShowroom    = "Showroom Staff"
)

// Roles lists every role a staff record or login account may carry.
var Roles = []string{
	RoleManager,
	RoleSupervisor,
	RoleStorekeeper,
	RoleDeveloper,
	RoleAccountant,
	RoleChiefBaker,
	RoleBaker,
	RoleDelivery,
	RoleShowroom,
}

const (
	PaymentCash     = "Cash"
	PaymentPOS      = "POS"
	PaymentCredit   = "Credit"
	PaymentPaystack = "Paystack"
	PaymentTransfer = "Transfer"
)

const (
	WalkInCustomerID     = "walk-in"
	ShowroomReturnRunID  = "showroom-return"
	DeliveryReturnRunID  = "delivery-return"
	PosSaleRunPrefix     = "pos-sale-"
	ProductionReturnNote = "Return from production batch"
	OrderStatusCompleted = "Completed"
	DaySalesKeyLayout    = "2006-01-02"
)

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	Username string
	StaffID  string
	Name     string
	Role     string
}

type Staff struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
	Stock     int             `json:"stock"`
	Unit      string          `json:"unit,omitempty"`
}

type Ingredient struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Unit        string          `json:"unit"`
	Stock       decimal.Decimal `json:"stock"`
	CostPerUnit decimal.Decimal `json:"costPerUnit"`
}

// PersonalStock is the staff/{staffId}/personal_stock/{productId} document.
type PersonalStock struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Stock       int    `json:"stock"`
}

// StaffProduct is a product as seen from one staff member's personal stock.
type StaffProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

type RecipeIngredient struct {
	IngredientID   string          `json:"ingredientId"`
	IngredientName string          `json:"ingredientName"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
}

type Recipe struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	ProductID   string             `json:"productId"`
	ProductName string             `json:"productName"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone,omitempty"`
	Address    string          `json:"address,omitempty"`
	AmountOwed decimal.Decimal `json:"amountOwed"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
}

type Supplier struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Contact    string          `json:"contact,omitempty"`
	AmountOwed decimal.Decimal `json:"amountOwed"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
}

type TransferItem struct {
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Quantity    int              `json:"quantity"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type Transfer struct {
	ID             string          `json:"id"`
	Kind           TransferKind    `json:"kind,omitempty"`
	FromStaffID    string          `json:"from_staff_id"`
	FromStaffName  string          `json:"from_staff_name"`
	ToStaffID      string          `json:"to_staff_id"`
	ToStaffName    string          `json:"to_staff_name"`
	Items          []TransferItem  `json:"items"`
	Date           time.Time       `json:"date"`
	Status         TransferStatus  `json:"status"`
	IsSalesRun     bool            `json:"is_sales_run"`
	Notes          string          `json:"notes"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	TotalCollected decimal.Decimal `json:"totalCollected"`
	TimeReceived   *time.Time      `json:"time_received"`
	TimeCompleted  *time.Time      `json:"time_completed"`
	OriginalRunID  string          `json:"originalRunId,omitempty"`
}

// EffectiveKind returns the explicit kind, classifying documents written before it existed.
func (t Transfer) EffectiveKind() TransferKind {
	if t.Kind != "" {
		return t.Kind
	}
	return InferTransferKind(t)
}

type BatchIngredient struct {
	IngredientID   string           `json:"ingredientId"`
	IngredientName string           `json:"ingredientName"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Unit           string           `json:"unit"`
	OpeningStock   *decimal.Decimal `json:"openingStock,omitempty"`
	ClosingStock   *decimal.Decimal `json:"closingStock,omitempty"`
}

type ProductionBatch struct {
	ID                   string            `json:"id"`
	RecipeID             string            `json:"recipeId"`
	RecipeName           string            `json:"recipeName"`
	ProductID            string            `json:"productId"`
	ProductName          string            `json:"productName"`
	RequestedByID        string            `json:"requestedById"`
	RequestedByName      string            `json:"requestedByName"`
	QuantityToProduce    int               `json:"quantityToProduce"`
	Status               BatchStatus       `json:"status"`
	CreatedAt            time.Time         `json:"createdAt"`
	ApprovedAt           *time.Time        `json:"approvedAt,omitempty"`
	CompletedAt          *time.Time        `json:"completedAt,omitempty"`
	Ingredients          []BatchIngredient `json:"ingredients"`
	SuccessfullyProduced *int              `json:"successfullyProduced,omitempty"`
	Wasted               *int              `json:"wasted,omitempty"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Order struct {
	ID            string          `json:"id"`
	SalesRunID    string          `json:"salesRunId"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	Items         []OrderItem     `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Date          time.Time       `json:"date"`
	StaffID       string          `json:"staffId"`
	StaffName     string          `json:"staffName"`
	Status        string          `json:"status"`
	IsDebtPayment bool            `json:"isDebtPayment"`
}

type ExpenseDetails struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

type PaymentConfirmation struct {
	ID             string             `json:"id"`
	RunID          string             `json:"runId"`
	CustomerID     string             `json:"customerId,omitempty"`
	CustomerName   string             `json:"customerName,omitempty"`
	Items          []OrderItem        `json:"items"`
	Amount         decimal.Decimal    `json:"amount"`
	DriverID       string             `json:"driverId"`
	DriverName     string             `json:"driverName"`
	Date           time.Time          `json:"date"`
	Status         ConfirmationStatus `json:"status"`
	PaymentMethod  string             `json:"paymentMethod"`
	IsDebtPayment  bool               `json:"isDebtPayment,omitempty"`
	IsExpense      bool               `json:"isExpense,omitempty"`
	ExpenseDetails *ExpenseDetails    `json:"expenseDetails,omitempty"`
}

// HasRun reports whether the confirmation belongs to a real sales run.
func (c PaymentConfirmation) HasRun() bool {
	return IsRealRunID(c.RunID)
}

// IsRealRunID is false for empty ids and the synthetic pos-sale run ids.
func IsRealRunID(runID string) bool {
	return runID != "" && !strings.HasPrefix(runID, PosSaleRunPrefix)
}

// DailySales is the sales/{yyyy-MM-dd} aggregate.
type DailySales struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Cash        decimal.Decimal `json:"cash"`
	POS         decimal.Decimal `json:"pos"`
	Transfer    decimal.Decimal `json:"transfer"`
	CreditSales decimal.Decimal `json:"creditSales"`
	Shortage    decimal.Decimal `json:"shortage"`
	Total       decimal.Decimal `json:"total"`
}

type WasteLog struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"productId"`
	ProductName     string    `json:"productName"`
	ProductCategory string    `json:"productCategory"`
	Quantity        int       `json:"quantity"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes"`
	StaffID         string    `json:"staffId"`
	StaffName       string    `json:"staffName"`
	Date            time.Time `json:"date"`
}

type IngredientStockLog struct {
	ID             string          `json:"id"`
	IngredientID   string          `json:"ingredientId"`
	IngredientName string          `json:"ingredientName"`
	Change         decimal.Decimal `json:"change"`
	Reason         string          `json:"reason"`
	Date           time.Time       `json:"date"`
	StaffName      string          `json:"staffName"`
	LogRefID       string          `json:"logRefId"`
}

type ProductionLog struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	StaffID   string    `json:"staffId"`
	StaffName string    `json:"staffName"`
	Timestamp time.Time `json:"timestamp"`
}

type CostDetail struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type IndirectCost struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Details     []CostDetail    `json:"details,omitempty"`
}

type DirectCost struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
	Date        time.Time       `json:"date"`
}

type SupplyRequest struct {
	ID             string             `json:"id"`
	IngredientID   string             `json:"ingredientId"`
	IngredientName string             `json:"ingredientName"`
	Quantity       decimal.Decimal    `json:"quantity"`
	SupplierID     string             `json:"supplierId"`
	SupplierName   string             `json:"supplierName"`
	RequesterID    string             `json:"requesterId"`
	RequesterName  string             `json:"requesterName"`
	Status         ConfirmationStatus `json:"status"`
	RequestDate    time.Time          `json:"requestDate"`
	CostPerUnit    *decimal.Decimal   `json:"costPerUnit,omitempty"`
	TotalCost      *decimal.Decimal   `json:"totalCost,omitempty"`
	ApproverID     string             `json:"approverId,omitempty"`
	ApproverName   string             `json:"approverName,omitempty"`
	ApprovedDate   *time.Time         `json:"approvedDate,omitempty"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail,omitempty"`
	DetailZstd    []byte    `json:"detail_zstd,omitempty"`
	Compression   string    `json:"compression"`
	CreatedAt     time.Time `json:"created_at"`
}

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	StaffID   string    `json:"staff_id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
