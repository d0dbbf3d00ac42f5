package models

import "github.com/shopspring/decimal"

// Cart -> satu cart aktif per user, dijaga unique index pada user_id
type Cart struct {
	ID     uint       `gorm:"primaryKey" json:"id"`
	UserID uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	Items  []CartItem `gorm:"foreignKey:CartID" json:"items"`
	Timestamps
}

type CartItem struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	CartID   uint `gorm:"not null;uniqueIndex:idx_cart_menu" json:"cart_id"`
	MenuID   uint `gorm:"not null;uniqueIndex:idx_cart_menu" json:"menu_id"`
	Menu     Menu `gorm:"foreignKey:MenuID" json:"-"`
	Quantity int  `gorm:"not null" json:"quantity"`
	// UnitPrice is the price seen when the line was added. Checkout ignores it.
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2); not null" json:"unit_price"`
	Timestamps
}
