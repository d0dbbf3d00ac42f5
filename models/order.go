package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index" json:"user_id"`
	User       *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`
	Status     OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Items      []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Invoices   []Invoice       `gorm:"foreignKey:OrderID" json:"invoices,omitempty"`
	Payments   []Payment       `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
	Refunds    []Refund        `gorm:"foreignKey:OrderID" json:"refunds,omitempty"`
	Timestamps
}

// BeforeUpdate -> hanya status yang boleh berubah setelah order dibuat
func (o *Order) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("TotalPrice", "UserID") {
		return fmt.Errorf("order %d: %w", o.ID, ErrImmutableRecord)
	}
	return nil
}

// CustomerIdentifier is the reference sent to the payment gateway.
func (o *Order) CustomerIdentifier() string {
	return fmt.Sprintf("ORDER-%d-%d", o.UserID, o.ID)
}

// OrderStatusLog records one status transition of an order.
type OrderStatusLog struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	OrderID    uint        `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ChangedBy  *uint       `json:"changed_by,omitempty"`
	Note       string      `gorm:"type:varchar(255)" json:"note,omitempty"`
	Timestamps
}

func (o *Order) OwnerID() uint { return o.UserID }
