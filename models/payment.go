package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents a payment attempt against an order
type Payment struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	OrderID          uint            `json:"order_id" gorm:"not null;index"`
	Method           PaymentMethod   `json:"payment_method" gorm:"type:varchar(16);not null"`
	Status           PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending';index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Reference        string          `json:"reference" gorm:"type:varchar(64);not null;uniqueIndex"`
	GatewayReference string          `json:"gateway_reference" gorm:"type:varchar(128)"` // transaction id from the gateway
	FailureReason    string          `json:"failure_reason,omitempty" gorm:"type:varchar(255)"`
	PaymentTime      *time.Time      `json:"payment_time"` // set when the payment completes
	Timestamps
}

// Refund is the compensating record that lets a paid order be cancelled.
type Refund struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Reference string          `json:"reference" gorm:"type:varchar(64);not null;uniqueIndex"`
	Reason    string          `json:"reason" gorm:"type:varchar(255)"`
	CreatedBy *uint           `json:"created_by,omitempty"`
	Timestamps
}
