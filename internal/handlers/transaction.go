// internal/handlers/transaction.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repasso/repasso-backend/internal/i18n"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

type TransactionHandler struct {
	transactionService *services.TransactionService
}

func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// respondTransactionError maps the service's sentinel errors onto HTTP
// statuses. ErrChargeUnavailable is special: the transition succeeded,
// only the payment details are missing, so the caller gets 503 and
// retries.
func respondTransactionError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	switch {
	case errors.Is(err, services.ErrTicketUnavailable):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyTicketUnavailable))
	case errors.Is(err, services.ErrOwnTicket),
		errors.Is(err, services.ErrNotSeller),
		errors.Is(err, services.ErrNotBuyer):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrInvalidTransactionState),
		errors.Is(err, services.ErrNotYetConfirmed):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyTransactionInvalidState))
	case errors.Is(err, services.ErrReservationWindowExpired),
		errors.Is(err, services.ErrPaymentWindowExpired):
		utils.ErrorResponse(c, http.StatusGone, "EXPIRED", i18n.T(lang, i18n.KeyTransactionExpired), nil)
	case errors.Is(err, services.ErrChargeUnavailable):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE",
			i18n.T(lang, i18n.KeyPaymentUnavailable), nil)
	default:
		utils.BadRequestResponse(c, err.Error(), nil)
	}
}

// POST /tickets/:id/reserve
func (h *TransactionHandler) Reserve(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	buyerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ticket ID", nil)
		return
	}

	var req struct {
		BillingType models.BillingType `json:"billing_type"`
	}
	// Body is optional; PIX is the default.
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.Reserve(buyerID, ticketID, req.BillingType)
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionReserved),
		"transaction": txn,
	})
}

// GET /transactions
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)
	transactions, total, err := h.transactionService.ListForUser(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /transactions/:id
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	txn, err := h.transactionService.GetForParticipant(userID, userType == "admin", txnID)
	if err != nil {
		utils.NotFoundResponse(c, "transaction")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": txn,
	})
}

// POST /transactions/:id/confirm
func (h *TransactionHandler) SellerConfirm(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	sellerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	txn, err := h.transactionService.SellerConfirm(c.Request.Context(), sellerID, txnID)
	if err != nil {
		// Charge deferral still confirmed the reservation; return the
		// transaction alongside the retry hint.
		if errors.Is(err, services.ErrChargeUnavailable) && txn != nil {
			c.JSON(http.StatusAccepted, utils.APIResponse{
				Success: true,
				Data: gin.H{
					"message":     i18n.T(lang, i18n.KeyPaymentUnavailable),
					"transaction": txn,
				},
			})
			return
		}
		respondTransactionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionConfirmed),
		"transaction": txn,
	})
}

// POST /transactions/:id/reject
func (h *TransactionHandler) SellerReject(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	sellerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	txn, err := h.transactionService.SellerReject(sellerID, txnID, req.Reason)
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     i18n.T(lang, i18n.KeyTransactionRejected),
		"transaction": txn,
	})
}

// POST /transactions/:id/charge
func (h *TransactionHandler) RetryCharge(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	buyerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	txn, err := h.transactionService.RetryCharge(c.Request.Context(), buyerID, txnID)
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": txn,
	})
}

// POST /transactions/:id/confirm-entry
func (h *TransactionHandler) ConfirmEntry(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	buyerID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	txn, err := h.transactionService.BuyerConfirmEntry(buyerID, txnID)
	if err != nil {
		respondTransactionError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"transaction": txn,
	})
}
