package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/food-checkout/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentQuery struct {
	OrderID *uint
	Status  models.PaymentStatus
	Method  models.PaymentMethod
	Sort    Sort
	Page
}

var paymentSortColumns = map[string]bool{"id": true, "created_at": true, "amount": true}

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.DB.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) FindByReference(ctx context.Context, ref string) (*models.Payment, error) {
	var p models.Payment
	if err := r.DB.WithContext(ctx).Where("reference = ?", ref).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) LockByID(ctx context.Context, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletedSum adds up completed payment amounts of an order in decimal.
func (r *PaymentRepository) CompletedSum(ctx context.Context, orderID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := r.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCompleted).
		Order("id ASC").
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum, nil
}

func (r *PaymentRepository) CountCompleted(ctx context.Context, orderID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCompleted).
		Count(&n).Error
	return n, err
}

// UpdateStatusGuard moves a payment out of the expected status, together with extra columns.
func (r *PaymentRepository) UpdateStatusGuard(ctx context.Context, id uint, from models.PaymentStatus, fields map[string]interface{}) (int64, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *PaymentRepository) SetGatewayReference(ctx context.Context, id uint, ref string) error {
	return r.DB.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("gateway_reference", ref).Error
}

// PendingWithGateway lists pending card and paypal payments with id > afterID
// whose order can still be paid. A charge that timed out has no gateway
// reference yet, so the method decides.
func (r *PaymentRepository) PendingWithGateway(ctx context.Context, afterID uint, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := r.DB.WithContext(ctx).
		Select("payments.*").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.status = ? AND payments.method <> ? AND payments.id > ?",
			models.PaymentStatusPending, models.PaymentMethodCash, afterID).
		Where("orders.status NOT IN ?", []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusDelivered}).
		Order("payments.id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *PaymentRepository) List(ctx context.Context, q PaymentQuery) (Result[models.Payment], error) {
	db := r.DB.WithContext(ctx).Model(&models.Payment{})
	if q.OrderID != nil {
		db = db.Where("order_id = ?", *q.OrderID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.Method != "" {
		db = db.Where("method = ?", q.Method)
	}

	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return Result[models.Payment]{}, err
	}
	var payments []models.Payment
	if err := db.Order(q.Sort.clause(paymentSortColumns, "id ASC")).
		Scopes(Paginate(q.Page)).
		Find(&payments).Error; err != nil {
		return Result[models.Payment]{}, err
	}
	return newResult(payments, total, q.Page), nil
}

func (r *PaymentRepository) CreateRefund(ctx context.Context, refund *models.Refund) error {
	return r.DB.WithContext(ctx).Create(refund).Error
}

func (r *PaymentRepository) FindRefund(ctx context.Context, id uint) (*models.Refund, error) {
	var refund models.Refund
	if err := r.DB.WithContext(ctx).First(&refund, id).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}
