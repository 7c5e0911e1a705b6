// internal/handlers/wallet.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/repasso/repasso-backend/internal/i18n"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

type WalletHandler struct {
	walletService     *services.WalletService
	withdrawalService *services.WithdrawalService
	reputationService *services.ReputationService
}

func NewWalletHandler(walletService *services.WalletService, withdrawalService *services.WithdrawalService, reputationService *services.ReputationService) *WalletHandler {
	return &WalletHandler{
		walletService:     walletService,
		withdrawalService: withdrawalService,
		reputationService: reputationService,
	}
}

// GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
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

	wallet, err := h.walletService.GetOrCreate(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"wallet": wallet,
	})
}

// GET /wallet/statement
func (h *WalletHandler) GetStatement(c *gin.Context) {
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
	lines, total, err := h.walletService.Statement(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(lines, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /wallet/withdrawals
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
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

	var req struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
		PixKey string          `json:"pix_key" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	withdrawal, err := h.withdrawalService.Request(userID, req.Amount, req.PixKey)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotVerified):
			utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyWithdrawalNotVerified))
		case errors.Is(err, services.ErrWithdrawalBelowMin):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyWithdrawalBelowMinimum), nil)
		case errors.Is(err, services.ErrWithdrawalInProgress):
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyWithdrawalInProgress))
		case errors.Is(err, services.ErrInsufficientBalance):
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE",
				i18n.T(lang, i18n.KeyWalletInsufficientBalance), nil)
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":    i18n.T(lang, i18n.KeyWithdrawalRequested),
		"withdrawal": withdrawal,
	})
}

// GET /wallet/withdrawals
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
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
	withdrawals, total, err := h.withdrawalService.ListForUser(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(withdrawals, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /wallet/reputation
func (h *WalletHandler) GetReputation(c *gin.Context) {
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

	reputation, err := h.reputationService.Get(userID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{
		"reputation": reputation,
	})
}
