package repository

import (
	"context"
	"time"

	"github.com/yeremiapane/food-checkout/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderQuery filters order listings. Empty fields do not filter.
type OrderQuery struct {
	UserID      *uint
	Status      models.OrderStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Sort        Sort
	Page
}

var orderSortColumns = map[string]bool{"id": true, "created_at": true, "total_price": true, "status": true}

type OrderRepository struct {
	DB *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *OrderRepository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	return r.DB.WithContext(ctx).Create(&items).Error
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindDetail loads the order with items, invoices, payments and refunds.
func (r *OrderRepository) FindDetail(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Invoices").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Refunds").
		First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID -> SELECT ... FOR UPDATE, harus dipanggil di dalam transaksi
func (r *OrderRepository) LockByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) Items(ctx context.Context, orderID uint) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&items).Error
	return items, err
}

// UpdateStatusGuard sets the status only if the row still holds the expected one.
// Zero rows affected means someone else moved the order first.
func (r *OrderRepository) UpdateStatusGuard(ctx context.Context, id uint, from, to models.OrderStatus) (int64, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *OrderRepository) AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *OrderRepository) StatusHistory(ctx context.Context, orderID uint) ([]models.OrderStatusLog, error) {
	var logs []models.OrderStatusLog
	err := r.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&logs).Error
	return logs, err
}

func (r *OrderRepository) List(ctx context.Context, q OrderQuery) (Result[models.Order], error) {
	db := r.DB.WithContext(ctx).Model(&models.Order{})
	if q.UserID != nil {
		db = db.Where("user_id = ?", *q.UserID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.CreatedFrom != nil {
		db = db.Where("created_at >= ?", *q.CreatedFrom)
	}
	if q.CreatedTo != nil {
		db = db.Where("created_at < ?", *q.CreatedTo)
	}

	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return Result[models.Order]{}, err
	}

	var orders []models.Order
	if err := db.Order(q.Sort.clause(orderSortColumns, "id DESC")).
		Scopes(Paginate(q.Page)).
		Find(&orders).Error; err != nil {
		return Result[models.Order]{}, err
	}
	return newResult(orders, total, q.Page), nil
}
