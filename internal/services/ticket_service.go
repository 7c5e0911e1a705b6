// internal/services/ticket_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/repasso/repasso-backend/internal/models"
	"github.com/repasso/repasso-backend/internal/utils"
)

var (
	ErrTicketNotEditable = errors.New("ticket can only be changed while it is available")
	ErrNotTicketOwner    = errors.New("ticket does not belong to you")
	ErrEventInPast       = errors.New("event date must be in the future")
)

type TicketService struct {
	db *gorm.DB
}

type CreateTicketRequest struct {
	EventName     string          `json:"event_name" validate:"required,max=255"`
	EventDate     time.Time       `json:"event_date" validate:"required"`
	Venue         string          `json:"venue" validate:"max=255"`
	Sector        string          `json:"sector" validate:"max=100"`
	Description   string          `json:"description"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Price         decimal.Decimal `json:"price" validate:"required"`
}

type UpdateTicketRequest struct {
	Venue       string           `json:"venue,omitempty" validate:"max=255"`
	Sector      string           `json:"sector,omitempty" validate:"max=100"`
	Description string           `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

func (s *TicketService) Create(sellerID uuid.UUID, req *CreateTicketRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Price.IsNegative() || req.Price.IsZero() {
		return nil, errors.New("price must be positive")
	}
	if req.EventDate.Before(time.Now()) {
		return nil, ErrEventInPast
	}

	ticket := &models.Ticket{
		SellerID:      sellerID,
		EventName:     req.EventName,
		EventDate:     req.EventDate,
		Venue:         req.Venue,
		Sector:        req.Sector,
		Description:   req.Description,
		OriginalPrice: req.OriginalPrice,
		Price:         req.Price,
		Status:        models.TicketStatusAvailable,
	}
	if err := s.db.Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	return ticket, nil
}

// Update edits a listing. Once a reservation exists the listing is
// frozen; price changes mid-escrow would desync the agreed amount.
func (s *TicketService) Update(sellerID, ticketID uuid.UUID, req *UpdateTicketRequest) (*models.Ticket, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	ticket, err := s.GetByID(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.SellerID != sellerID {
		return nil, ErrNotTicketOwner
	}
	if ticket.Status != models.TicketStatusAvailable {
		return nil, ErrTicketNotEditable
	}

	if req.Venue != "" {
		ticket.Venue = req.Venue
	}
	if req.Sector != "" {
		ticket.Sector = req.Sector
	}
	if req.Description != "" {
		ticket.Description = req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() || req.Price.IsZero() {
			return nil, errors.New("price must be positive")
		}
		ticket.Price = *req.Price
	}

	if err := s.db.Save(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	return ticket, nil
}

// Delist withdraws an available listing. Conditional on status so a
// concurrent reservation wins cleanly.
func (s *TicketService) Delist(sellerID, ticketID uuid.UUID) error {
	ticket, err := s.GetByID(ticketID)
	if err != nil {
		return err
	}
	if ticket.SellerID != sellerID {
		return ErrNotTicketOwner
	}

	res := s.db.Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticketID, models.TicketStatusAvailable).
		Update("status", models.TicketStatusCancelled)
	if res.Error != nil {
		return fmt.Errorf("failed to delist ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTicketNotEditable
	}
	return nil
}

func (s *TicketService) GetByID(id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := s.db.Preload("Seller").First(&ticket, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("ticket not found: %w", err)
	}
	return &ticket, nil
}

// List returns available listings for upcoming events, filtered by an
// optional search term over event name and venue.
func (s *TicketService) List(params utils.PaginationParams) ([]models.Ticket, int64, error) {
	query := s.db.Model(&models.Ticket{}).
		Where("status = ? AND event_date > ?", models.TicketStatusAvailable, time.Now()).
		Preload("Seller")

	if params.Search != "" {
		term := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(event_name) LIKE ? OR LOWER(venue) LIKE ?", term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	allowedSortFields := []string{"created_at", "event_date", "price"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var tickets []models.Ticket
	if err := query.Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tickets: %w", err)
	}
	return tickets, total, nil
}

// ListForSeller returns all of the seller's listings regardless of
// status.
func (s *TicketService) ListForSeller(sellerID uuid.UUID, params utils.PaginationParams) ([]models.Ticket, int64, error) {
	query := s.db.Model(&models.Ticket{}).Where("seller_id = ?", sellerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tickets: %w", err)
	}

	var tickets []models.Ticket
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&tickets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tickets: %w", err)
	}
	return tickets, total, nil
}
