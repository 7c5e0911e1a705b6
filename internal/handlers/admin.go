// internal/handlers/admin.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/i18n"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

type AdminHandler struct {
	db                 *gorm.DB
	authService        *services.AuthService
	transactionService *services.TransactionService
	disputeService     *services.DisputeService
	withdrawalService  *services.WithdrawalService
}

func NewAdminHandler(db *gorm.DB, authService *services.AuthService, transactionService *services.TransactionService, disputeService *services.DisputeService, withdrawalService *services.WithdrawalService) *AdminHandler {
	return &AdminHandler{
		db:                 db,
		authService:        authService,
		transactionService: transactionService,
		disputeService:     disputeService,
		withdrawalService:  withdrawalService,
	}
}

func adminID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	var (
		inEscrow           int64
		openDisputes       int64
		pendingWithdrawals int64
		releasedToday      int64
	)

	h.db.Model(&models.Transaction{}).
		Where("status IN ?", []models.TransactionStatus{
			models.TransactionStatusPaid,
			models.TransactionStatusConfirmed,
			models.TransactionStatusDisputed,
		}).Count(&inEscrow)
	h.db.Model(&models.Dispute{}).
		Where("status IN ?", []models.DisputeStatus{
			models.DisputeStatusOpen,
			models.DisputeStatusUnderReview,
		}).Count(&openDisputes)
	h.db.Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).Count(&pendingWithdrawals)
	h.db.Model(&models.Transaction{}).
		Where("status = ? AND released_at > ?", models.TransactionStatusReleased,
			time.Now().Truncate(24*time.Hour)).Count(&releasedToday)

	utils.SuccessResponse(c, gin.H{
		"transactions_in_escrow": inEscrow,
		"open_disputes":          openDisputes,
		"pending_withdrawals":    pendingWithdrawals,
		"released_today":         releasedToday,
	})
}

// GET /admin/transactions
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.TransactionStatus(c.Query("status"))

	transactions, total, err := h.transactionService.ListAll(status, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/disputes
func (h *AdminHandler) ListDisputes(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.DisputeStatus(c.Query("status"))

	disputes, total, err := h.disputeService.ListAll(status, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(disputes, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/disputes/:id/review
func (h *AdminHandler) StartDisputeReview(c *gin.Context) {
	if _, ok := adminID(c); !ok {
		return
	}

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	dispute, err := h.disputeService.StartReview(disputeID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"dispute": dispute,
	})
}

// POST /admin/disputes/:id/resolve
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := adminID(c)
	if !ok {
		return
	}

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	var req struct {
		Decision  services.DisputeDecision `json:"decision" validate:"required"`
		Rationale string                   `json:"rationale" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	dispute, err := h.disputeService.Resolve(c.Request.Context(), admin, disputeID, req.Decision, req.Rationale)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDisputeAlreadyResolved):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, services.ErrRationaleTooShort):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDisputeResolved),
		"dispute": dispute,
	})
}

// GET /admin/withdrawals
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.WithdrawalStatus(c.Query("status"))

	withdrawals, total, err := h.withdrawalService.ListAll(status, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(withdrawals, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /admin/withdrawals/:id/process
func (h *AdminHandler) ProcessWithdrawal(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid withdrawal ID", nil)
		return
	}

	withdrawal, err := h.withdrawalService.Process(admin, withdrawalID)
	if err != nil {
		if errors.Is(err, services.ErrWithdrawalNotPending) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"withdrawal": withdrawal,
	})
}

// POST /admin/withdrawals/:id/complete
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	if _, ok := adminID(c); !ok {
		return
	}

	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid withdrawal ID", nil)
		return
	}

	withdrawal, err := h.withdrawalService.Complete(withdrawalID)
	if err != nil {
		if errors.Is(err, services.ErrWithdrawalNotOpen) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"withdrawal": withdrawal,
	})
}

// POST /admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	admin, ok := adminID(c)
	if !ok {
		return
	}

	withdrawalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid withdrawal ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	withdrawal, err := h.withdrawalService.Reject(admin, withdrawalID, req.Reason)
	if err != nil {
		if errors.Is(err, services.ErrWithdrawalNotOpen) {
			utils.ConflictResponse(c, err.Error())
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"withdrawal": withdrawal,
	})
}

// POST /admin/users/:id/verify
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	user, err := h.authService.VerifyUser(userID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyUserVerified),
		"user":    user,
	})
}

// POST /admin/users/:id/suspend
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	res := h.db.Model(&models.User{}).
		Where("id = ? AND user_type <> ?", userID, models.UserTypeAdmin).
		Update("status", models.UserStatusSuspended)
	if res.Error != nil {
		utils.InternalErrorResponse(c, res.Error.Error())
		return
	}
	if res.RowsAffected == 0 {
		utils.NotFoundResponse(c, "user")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminUserSuspended),
	})
}

// GET /admin/notifications
func (h *AdminHandler) ListNotifications(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.AdminNotification{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	var notifications []models.AdminNotification
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&notifications).Error; err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(notifications, total, params)
	utils.PaginatedResponse(c, result)
}
