// internal/handlers/ticket.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repasso/repasso-backend/internal/i18n"
	"github.com/repasso/repasso-backend/internal/services"
	"github.com/repasso/repasso-backend/internal/utils"
)

type TicketHandler struct {
	ticketService *services.TicketService
}

func NewTicketHandler(ticketService *services.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
	}
}

// GET /tickets
func (h *TicketHandler) ListTickets(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	tickets, total, err := h.ticketService.List(params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(tickets, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ticket ID", nil)
		return
	}

	ticket, err := h.ticketService.GetByID(ticketID)
	if err != nil {
		utils.NotFoundResponse(c, "ticket")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ticket": ticket,
	})
}

// POST /tickets
func (h *TicketHandler) CreateTicket(c *gin.Context) {
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

	var req services.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	ticket, err := h.ticketService.Create(userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketCreated),
		"ticket":  ticket,
	})
}

// PUT /tickets/:id
func (h *TicketHandler) UpdateTicket(c *gin.Context) {
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

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ticket ID", nil)
		return
	}

	var req services.UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	ticket, err := h.ticketService.Update(userID, ticketID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotTicketOwner):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrTicketNotEditable):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketUpdated),
		"ticket":  ticket,
	})
}

// DELETE /tickets/:id
func (h *TicketHandler) DelistTicket(c *gin.Context) {
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

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ticket ID", nil)
		return
	}

	if err := h.ticketService.Delist(userID, ticketID); err != nil {
		switch {
		case errors.Is(err, services.ErrNotTicketOwner):
			utils.ForbiddenResponse(c, err.Error())
		case errors.Is(err, services.ErrTicketNotEditable):
			utils.ConflictResponse(c, err.Error())
		default:
			utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyTicketDeleted),
	})
}

// GET /tickets/mine
func (h *TicketHandler) MyTickets(c *gin.Context) {
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
	tickets, total, err := h.ticketService.ListForSeller(userID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(tickets, total, params)
	utils.PaginatedResponse(c, result)
}
