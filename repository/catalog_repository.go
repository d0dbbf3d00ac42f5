package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
	"gorm.io/gorm"
)

// MenuSnapshot is the catalog state of one menu item at read time.
type MenuSnapshot struct {
	MenuID    uint
	Name      string
	Price     decimal.Decimal
	Discount  decimal.NullDecimal
	Available bool
}

// EffectivePrice is the unit price minus the per-unit discount, if any.
func (s MenuSnapshot) EffectivePrice() decimal.Decimal {
	if s.Discount.Valid && s.Discount.Decimal.IsPositive() {
		return s.Price.Sub(s.Discount.Decimal)
	}
	return s.Price
}

// Sellable reports whether the item can be put on an order right now.
func (s MenuSnapshot) Sellable() bool {
	return s.Available && s.EffectivePrice().IsPositive()
}

type CatalogRepository struct {
	DB *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{DB: db}
}

func toSnapshot(m models.Menu) MenuSnapshot {
	return MenuSnapshot{
		MenuID:    m.ID,
		Name:      m.Name,
		Price:     m.Price,
		Discount:  m.Discount,
		Available: m.Available,
	}
}

// Snapshot returns gorm.ErrRecordNotFound when the item does not exist.
func (r *CatalogRepository) Snapshot(ctx context.Context, menuID uint) (*MenuSnapshot, error) {
	var m models.Menu
	if err := r.DB.WithContext(ctx).
		Select("id", "name", "price", "discount", "available").
		First(&m, menuID).Error; err != nil {
		return nil, err
	}
	s := toSnapshot(m)
	return &s, nil
}

// Snapshots reads many items at once. Missing ids are absent from the map.
func (r *CatalogRepository) Snapshots(ctx context.Context, ids []uint) (map[uint]MenuSnapshot, error) {
	out := make(map[uint]MenuSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var menus []models.Menu
	if err := r.DB.WithContext(ctx).
		Select("id", "name", "price", "discount", "available").
		Where("id IN ?", ids).
		Find(&menus).Error; err != nil {
		return nil, err
	}
	for _, m := range menus {
		out[m.ID] = toSnapshot(m)
	}
	return out, nil
}
