package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is a frozen (menu, quantity, price) line of an order.
type OrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         uint            `gorm:"not null;index" json:"order_id"`
	MenuID          uint            `gorm:"not null;index" json:"menu_id"`
	MenuName        string          `gorm:"type:varchar(255); not null" json:"menu_name"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price_at_purchase"`
	Timestamps
}

// LineTotal -> quantity x price_at_purchase, tanpa pembulatan
func (oi *OrderItem) LineTotal() decimal.Decimal {
	return oi.PriceAtPurchase.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}

func (oi *OrderItem) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("order item: %w", ErrImmutableRecord)
}

func (oi *OrderItem) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("order item: %w", ErrImmutableRecord)
}
