package services

import (
	"context"
	"errors"

	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"gorm.io/gorm"
)

// OrderService serves read-only order queries.
type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	order, err := repository.NewOrderRepository(s.db).FindDetail(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) List(ctx context.Context, q repository.OrderQuery) (repository.Result[models.Order], error) {
	return repository.NewOrderRepository(s.db).List(ctx, q)
}
