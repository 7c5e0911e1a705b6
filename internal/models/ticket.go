// internal/models/ticket.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ticket struct {
	BaseModel
	SellerID     uuid.UUID       `json:"seller_id" gorm:"type:uuid;not null;index"`
	EventName    string          `json:"event_name" gorm:"size:255;not null"`
	EventDate    time.Time       `json:"event_date" gorm:"not null;index"`
	Venue        string          `json:"venue" gorm:"size:255"`
	Sector       string          `json:"sector" gorm:"size:100"`
	Description  string          `json:"description" gorm:"type:text"`
	OriginalPrice decimal.Decimal `json:"original_price" gorm:"type:decimal(10,2)"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Status       TicketStatus    `json:"status" gorm:"type:varchar(20);default:'available';index"`

	// Relationships
	Seller       User          `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:TicketID"`
}
