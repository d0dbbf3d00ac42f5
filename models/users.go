package models

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255); not null" json:"name"`
	Email     string    `gorm:"type:varchar(255); unique;not null" json:"email"`
	Phone     string    `gorm:"type:varchar(32)" json:"phone"`
	Password  string    `gorm:"type:varchar(255); not null" json:"-"`
	Role      string    `gorm:"type:varchar(32); not null;default:'customer'" json:"role"`
	Addresses []Address `gorm:"foreignKey:UserID" json:"addresses,omitempty"`
	Timestamps
}

// Address -> alamat milik tepat satu user
type Address struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	Line1      string `gorm:"type:varchar(255); not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	City       string `gorm:"type:varchar(128); not null" json:"city"`
	PostalCode string `gorm:"type:varchar(32)" json:"postal_code"`
	Country    string `gorm:"type:varchar(64); not null" json:"country"`
	IsDefault  bool   `gorm:"not null;default:false" json:"is_default"`
	Timestamps
}
