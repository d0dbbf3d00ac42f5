package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Invoice snapshots the billing address at checkout time. One per order.
type Invoice struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OrderID       uint      `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	AddressID     uint      `gorm:"not null" json:"address_id"`
	InvoiceNumber string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"invoice_number"`
	RecipientName string    `gorm:"type:varchar(255)" json:"recipient_name"`
	Line1         string    `gorm:"type:varchar(255); not null" json:"line1"`
	Line2         string    `gorm:"type:varchar(255)" json:"line2"`
	City          string    `gorm:"type:varchar(128); not null" json:"city"`
	PostalCode    string    `gorm:"type:varchar(32)" json:"postal_code"`
	Country       string    `gorm:"type:varchar(64); not null" json:"country"`
	IssuedAt      time.Time `gorm:"not null" json:"issued_at"`
	Timestamps
}

func (i *Invoice) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("invoice: %w", ErrImmutableRecord)
}

func (i *Invoice) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("invoice: %w", ErrImmutableRecord)
}

func (i *Invoice) OwnerID() uint { return i.UserID }
