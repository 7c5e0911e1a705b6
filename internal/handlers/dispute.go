// internal/handlers/dispute.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repasso/repasso-backend/internal/i18n"
	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	storageService *services.StorageService
}

func NewDisputeHandler(disputeService *services.DisputeService, storageService *services.StorageService) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
		storageService: storageService,
	}
}

func respondDisputeError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	switch {
	case errors.Is(err, services.ErrNotDisputable):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyTransactionInvalidState))
	case errors.Is(err, services.ErrDisputeAlreadyOpen):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyDisputeAlreadyOpen))
	case errors.Is(err, services.ErrDisputeNotOpen):
		utils.ConflictResponse(c, i18n.T(lang, i18n.KeyDisputeClosed))
	case errors.Is(err, services.ErrNotDisputeParticipant):
		utils.ForbiddenResponse(c, err.Error())
	default:
		utils.BadRequestResponse(c, err.Error(), nil)
	}
}

// POST /disputes
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
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
		TransactionID uuid.UUID            `json:"transaction_id" validate:"required"`
		Reason        models.DisputeReason `json:"reason" validate:"required"`
		Description   string               `json:"description" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	dispute, err := h.disputeService.Open(userID, req.TransactionID, req.Reason, req.Description)
	if err != nil {
		respondDisputeError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyDisputeOpened),
		"dispute": dispute,
	})
}

// GET /disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
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
	disputes, total, err := h.disputeService.ListForUser(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(disputes, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
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

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	dispute, err := h.disputeService.GetForParticipant(userID, userType == "admin", disputeID)
	if err != nil {
		if errors.Is(err, services.ErrNotDisputeParticipant) {
			utils.ForbiddenResponse(c, err.Error())
			return
		}
		utils.NotFoundResponse(c, "dispute")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"dispute": dispute,
	})
}

// POST /disputes/:id/messages
func (h *DisputeHandler) AddMessage(c *gin.Context) {
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

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	var req struct {
		Message string `json:"message" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	message, err := h.disputeService.AddMessage(userID, userType == "admin", disputeID, req.Message)
	if err != nil {
		respondDisputeError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"dispute_message": message,
	})
}

// POST /disputes/:id/evidence
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
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

	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid dispute ID", nil)
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	options := h.storageService.GetDefaultUploadOptions("dispute_evidence")
	upload, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	evidence, err := h.disputeService.AddEvidence(userID, disputeID, upload.URL, header.Filename, c.PostForm("description"))
	if err != nil {
		respondDisputeError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeyFileUploadSuccess),
		"evidence": evidence,
	})
}
