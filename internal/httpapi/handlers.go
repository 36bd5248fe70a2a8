package httpapi

import (
	"net/http"
	"strings"

	"github.com/gabrielekerete60/bms/internal/domain"
)

func (a *API) handleTransfers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		transfers, err := a.service.ListTransfers(r.Context(), domain.TransferFilter{
			ToStaffID:   strings.TrimSpace(query.Get("staff_id")),
			FromStaffID: strings.TrimSpace(query.Get("from_staff_id")),
			Status:      domain.TransferStatus(strings.TrimSpace(query.Get("status"))),
		})
		a.writeResult(w, r, err, domain.ActionResult{}, transfers)
	case http.MethodPost:
		var req domain.InitiateTransferRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		transfer, err := a.service.InitiateTransfer(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: transfer.ID}, transfer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := a.service.GetTransfer(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{ID: transfer.ID}, transfer)
}

func (a *API) handleAcknowledgeTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.AcknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	err := a.service.AcknowledgeTransfer(r.Context(), id, req.Action)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleReturnStock(w http.ResponseWriter, r *http.Request) {
	var req domain.ReturnStockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	transfer, err := a.service.ReturnStock(r.Context(), r.PathValue("id"), req)
	a.writeResult(w, r, err, domain.ActionResult{ID: transfer.ID}, transfer)
}

func (a *API) handleCompleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.CompleteRun(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleResetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.ResetSalesRun(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleRunOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := a.service.OrdersForRun(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{}, orders)
}

func (a *API) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := domain.BatchStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		batches, err := a.service.ListBatches(r.Context(), status)
		a.writeResult(w, r, err, domain.ActionResult{}, batches)
	case http.MethodPost:
		var req domain.StartBatchRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		batch, err := a.service.StartBatch(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: batch.ID}, batch)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := a.service.GetBatch(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{ID: batch.ID}, batch)
}

func (a *API) handleApproveBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.ApproveIngredientsRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	err := a.service.ApproveIngredientRequest(r.Context(), id, req.Ingredients)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleDeclineBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.DeclineBatch(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.CancelBatch(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleCompleteBatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	err := a.service.CompleteBatch(r.Context(), id, req)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleReturnIngredients(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []domain.IngredientReturnItem `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	err := a.service.ReturnUnusedIngredients(r.Context(), req.Items)
	a.writeResult(w, r, err, domain.ActionResult{}, nil)
}

func (a *API) handleProductionLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListProductionLogs(r.Context())
	a.writeResult(w, r, err, domain.ActionResult{}, logs)
}

func (a *API) handleIngredientStockLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.service.ListIngredientStockLogs(r.Context())
	a.writeResult(w, r, err, domain.ActionResult{}, logs)
}

func (a *API) handleSellToCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.SellToCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	outcome, err := a.service.SellToCustomer(r.Context(), req)
	a.writeResult(w, r, err, domain.ActionResult{OrderID: outcome.OrderID, ConfirmationID: outcome.ConfirmationID}, nil)
}

func (a *API) handlePosSale(w http.ResponseWriter, r *http.Request) {
	var req domain.PosSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	outcome, err := a.service.PosSale(r.Context(), req)
	a.writeResult(w, r, err, domain.ActionResult{OrderID: outcome.OrderID}, nil)
}

func (a *API) handleDebtPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.DebtPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	outcome, err := a.service.RecordDebtPayment(r.Context(), req)
	a.writeResult(w, r, err, domain.ActionResult{ConfirmationID: outcome.ConfirmationID}, nil)
}

func (a *API) handleRunExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.RunExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	outcome, err := a.service.LogRunExpense(r.Context(), req)
	a.writeResult(w, r, err, domain.ActionResult{ConfirmationID: outcome.ConfirmationID}, nil)
}

func (a *API) handleDailySales(w http.ResponseWriter, r *http.Request) {
	day := r.PathValue("day")
	sales, err := a.service.DailySales(r.Context(), day)
	a.writeResult(w, r, err, domain.ActionResult{ID: day}, sales)
}

func (a *API) handlePendingConfirmations(w http.ResponseWriter, r *http.Request) {
	confirmations, err := a.service.PendingConfirmations(r.Context())
	a.writeResult(w, r, err, domain.ActionResult{}, confirmations)
}

func (a *API) handlePaymentConfirmation(w http.ResponseWriter, r *http.Request) {
	var req domain.AcknowledgeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	outcome, err := a.service.HandlePaymentConfirmation(r.Context(), id, req.Action)
	a.writeResult(w, r, err, domain.ActionResult{ConfirmationID: id, OrderID: outcome.OrderID}, nil)
}

func (a *API) handleInitializePayment(w http.ResponseWriter, r *http.Request) {
	var req domain.InitializePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	reference, err := a.service.InitializePayment(r.Context(), req)
	a.writeResult(w, r, err, domain.ActionResult{Reference: reference}, nil)
}

func (a *API) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.PathValue("reference")
	outcome, err := a.service.VerifyAndFinalizeOrder(r.Context(), reference)
	a.writeResult(w, r, err, domain.ActionResult{Reference: reference, OrderID: outcome.OrderID}, nil)
}

func (a *API) handleWaste(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		logs, err := a.service.ListWasteLogs(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, logs)
	case http.MethodPost:
		var req domain.ReportWasteRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		err := a.service.ReportWaste(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{}, nil)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handlePersonalStock(w http.ResponseWriter, r *http.Request) {
	stock, err := a.service.PersonalStock(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{}, stock)
}

func (a *API) handlePendingTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := a.service.PendingTransfersForStaff(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{}, transfers)
}

func (a *API) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	var req domain.RemoveStockRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	err := a.service.RemoveStockFromStaff(r.Context(), r.PathValue("id"), req)
	a.writeResult(w, r, err, domain.ActionResult{}, nil)
}

func (a *API) handleSupplyRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		requests, err := a.service.PendingSupplyRequests(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, requests)
	case http.MethodPost:
		var req domain.SupplyRequestCreate
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		created, err := a.service.RequestStockIncrease(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: created.ID}, created)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleApproveSupply(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplyApproval
	if err := decodeOptionalJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	err := a.service.ApproveStockIncrease(r.Context(), id, req)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleDeclineSupply(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.DeclineStockIncrease(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
	logs, err := a.service.AuditLogs(r.Context(), limit)
	a.writeResult(w, r, err, domain.ActionResult{}, logs)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, products)
	case http.MethodPost:
		var req domain.Product
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		product, err := a.service.SaveProduct(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: product.ID}, product)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleIngredients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ingredients, err := a.service.ListIngredients(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, ingredients)
	case http.MethodPost:
		var req domain.Ingredient
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		ingredient, err := a.service.SaveIngredient(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: ingredient.ID}, ingredient)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		recipes, err := a.service.ListRecipes(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, recipes)
	case http.MethodPost:
		var req domain.Recipe
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		recipe, err := a.service.SaveRecipe(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: recipe.ID}, recipe)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := a.service.DeleteRecipe(r.Context(), id)
	a.writeResult(w, r, err, domain.ActionResult{ID: id}, nil)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, customers)
	case http.MethodPost:
		var req domain.Customer
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		customer, err := a.service.SaveCustomer(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: customer.ID}, customer)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		staff, err := a.service.ListStaff(r.Context())
		a.writeResult(w, r, err, domain.ActionResult{}, staff)
	case http.MethodPost:
		var req domain.Staff
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		staff, err := a.service.SaveStaff(r.Context(), req)
		a.writeResult(w, r, err, domain.ActionResult{ID: staff.ID}, staff)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStaffProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ProductsForStaff(r.Context(), r.PathValue("id"))
	a.writeResult(w, r, err, domain.ActionResult{}, products)
}
