package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionResult is the envelope every workflow operation answers with.
type ActionResult struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	Code           string `json:"code,omitempty"`
	ID             string `json:"id,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	ConfirmationID string `json:"confirmationId,omitempty"`
	Reference      string `json:"reference,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StaffID     string `json:"staff_id"`
	ExpiresAt   string `json:"expires_at"`
}

type InitiateTransferRequest struct {
	ToStaffID  string         `json:"to_staff_id"`
	Items      []TransferItem `json:"items"`
	IsSalesRun bool           `json:"is_sales_run"`
	Notes      string         `json:"notes"`
}

type AcknowledgeRequest struct {
	Action string `json:"action"`
}

const (
	ActionAccept  = "accept"
	ActionDecline = "decline"
	ActionApprove = "approve"
)

type ReturnStockRequest struct {
	Items     []TransferItem `json:"items"`
	ToStaffID string         `json:"to_staff_id"`
}

type TransferFilter struct {
	ToStaffID   string
	FromStaffID string
	Status      TransferStatus
}

const (
	BatchSizeFull = "full"
	BatchSizeHalf = "half"
)

type StartBatchRequest struct {
	RecipeID          string `json:"recipeId"`
	QuantityToProduce int    `json:"quantityToProduce"`
	BatchSize         string `json:"batchSize"`
}

type ApproveIngredientsRequest struct {
	Ingredients []BatchIngredient `json:"ingredients"`
}

type ProducedItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

type CompleteBatchRequest struct {
	ProducedItems []ProducedItem `json:"producedItems"`
	WastedItems   []ProducedItem `json:"wastedItems"`
	StorekeeperID string         `json:"storekeeperId"`
}

type IngredientReturnItem struct {
	IngredientID   string          `json:"ingredientId"`
	IngredientName string          `json:"ingredientName"`
	Quantity       decimal.Decimal `json:"quantity"`
}

type SellToCustomerRequest struct {
	RunID         string          `json:"runId"`
	Items         []OrderItem     `json:"items"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	PaymentMethod string          `json:"paymentMethod"`
	StaffID       string          `json:"staffId"`
	Total         decimal.Decimal `json:"total"`
}

type PosSaleRequest struct {
	Items         []OrderItem     `json:"items"`
	CustomerName  string          `json:"customerName"`
	PaymentMethod string          `json:"paymentMethod"`
	StaffID       string          `json:"staffId"`
	Total         decimal.Decimal `json:"total"`
	Date          *time.Time      `json:"date,omitempty"`
}

type DebtPaymentRequest struct {
	RunID         string          `json:"runId"`
	CustomerID    string          `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
}

type RunExpenseRequest struct {
	RunID       string          `json:"runId"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type ConfirmationFilter struct {
	RunID  string
	Status ConfirmationStatus
}

type WasteItem struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	ProductCategory string `json:"productCategory"`
	Quantity        int    `json:"quantity"`
}

type ReportWasteRequest struct {
	Items  []WasteItem `json:"items"`
	Reason string      `json:"reason"`
	Notes  string      `json:"notes"`
}

type RemoveStockRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type SupplyRequestCreate struct {
	IngredientID string          `json:"ingredientId"`
	Quantity     decimal.Decimal `json:"quantity"`
	SupplierID   string          `json:"supplierId"`
}

type SupplyApproval struct {
	CostPerUnit decimal.Decimal `json:"costPerUnit"`
	TotalCost   decimal.Decimal `json:"totalCost"`
}

type InitializePaymentRequest struct {
	Email         string          `json:"email"`
	Total         decimal.Decimal `json:"total"`
	CustomerName  string          `json:"customerName"`
	CustomerID    string          `json:"customerId,omitempty"`
	StaffID       string          `json:"staffId"`
	Items         []OrderItem     `json:"items"`
	IsPosSale     bool            `json:"isPosSale"`
	IsDebtPayment bool            `json:"isDebtPayment"`
	RunID         string          `json:"runId,omitempty"`
}

// PaymentMetadata is the bag attached to a gateway transaction and returned on verification.
type PaymentMetadata struct {
	CustomerName  string      `json:"customer_name"`
	StaffID       string      `json:"staff_id"`
	StaffName     string      `json:"staff_name"`
	Cart          []OrderItem `json:"cart"`
	IsPosSale     bool        `json:"isPosSale"`
	IsDebtPayment bool        `json:"isDebtPayment"`
	RunID         string      `json:"runId,omitempty"`
	CustomerID    string      `json:"customerId,omitempty"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	StaffID  string `json:"staff_id"`
	Role     string `json:"role"`
}

type UserSummary struct {
	Username  string    `json:"username"`
	StaffID   string    `json:"staff_id"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
