// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username          string            `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email             string            `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash      string            `json:"-" gorm:"size:255;not null"`
	FullName          string            `json:"full_name" gorm:"size:255"`
	CPF               string            `json:"cpf,omitempty" gorm:"size:14;index"`
	Phone             string            `json:"phone,omitempty" gorm:"size:20"`
	UserType          UserType          `json:"user_type" gorm:"type:varchar(20);default:'user';not null"`
	VerificationLevel VerificationLevel `json:"verification_level" gorm:"type:varchar(20);default:'unverified'"`
	Status            UserStatus        `json:"status" gorm:"type:varchar(20);default:'active'"`

	// GatewayCustomerID caches the payment gateway's customer id so charges
	// do not re-create the customer on every sale.
	GatewayCustomerID string     `json:"-" gorm:"size:64"`
	EmailVerifiedAt   *time.Time `json:"email_verified_at"`
	LastLoginAt       *time.Time `json:"last_login_at"`

	EmailVerificationToken string     `json:"-" gorm:"size:64;index"`
	ResetToken             string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpiresAt    *time.Time `json:"-"`

	// Relationships
	Tickets    []Ticket        `json:"tickets,omitempty" gorm:"foreignKey:SellerID"`
	Purchases  []Transaction   `json:"purchases,omitempty" gorm:"foreignKey:BuyerID"`
	Sales      []Transaction   `json:"sales,omitempty" gorm:"foreignKey:SellerID"`
	Wallet     *Wallet         `json:"wallet,omitempty" gorm:"foreignKey:UserID"`
	Reputation *UserReputation `json:"reputation,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}
