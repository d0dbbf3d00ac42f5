package models

import "github.com/shopspring/decimal"

type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(255); not null;unique" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Menus       []Menu `gorm:"foreignKey:CategoryID" json:"menus,omitempty"`
	Timestamps
}

type Menu struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	CategoryID      uint                `gorm:"not null;index" json:"category_id"`
	Category        Category            `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	Name            string              `gorm:"type:varchar(255); not null" json:"name"`
	Description     string              `gorm:"type:text" json:"description"`
	Price           decimal.Decimal     `gorm:"type:decimal(10,2); not null" json:"price"`
	Available       bool                `gorm:"not null;default:true" json:"available"`
	Discount        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"discount"`
	Rating          decimal.NullDecimal `gorm:"type:decimal(3,2)" json:"rating"`
	PrepTimeMinutes *int                `json:"prep_time_minutes,omitempty"`
	Calories        *int                `json:"calories,omitempty"`
	Ingredients     StringList          `gorm:"type:text" json:"ingredients"`
	Tags            []Tag               `gorm:"many2many:menu_tags" json:"tags,omitempty"`
	Timestamps
}

type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(64); not null;unique" json:"name"`
}

// MenuTag is the join row between menus and tags. The pair is the primary key.
type MenuTag struct {
	MenuID uint `gorm:"primaryKey;autoIncrement:false"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false"`
}
