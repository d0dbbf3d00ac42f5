package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/utils"
	"gorm.io/gorm"
)

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:    {models.OrderStatusDelivered, models.OrderStatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the order lifecycle.
func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransitionOptions struct {
	// RefundID names the refund that proves money went back. Needed to cancel
	// an order that has completed payments.
	RefundID  *uint
	ChangedBy *uint
	Note      string
}

// OrderStatusChange is published after a transition commits.
type OrderStatusChange struct {
	OrderID uint               `json:"order_id"`
	UserID  uint               `json:"user_id"`
	From    models.OrderStatus `json:"from"`
	To      models.OrderStatus `json:"to"`
	Note    string             `json:"note,omitempty"`
}

func (c OrderStatusChange) OwnerID() uint { return c.UserID }

type OrderStateMachine struct {
	db        *gorm.DB
	publisher EventPublisher
}

func NewOrderStateMachine(db *gorm.DB, publisher EventPublisher) *OrderStateMachine {
	return &OrderStateMachine{db: db, publisher: publisher}
}

// Transition moves the order to target in its own transaction.
func (m *OrderStateMachine) Transition(ctx context.Context, orderID uint, target models.OrderStatus, opts TransitionOptions) (*models.Order, error) {
	unlock := processLocks.Lock(orderLockKey(orderID))
	defer unlock()

	var (
		order  *models.Order
		events outbox
	)
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := repository.NewOrderRepository(tx).LockByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		change, err := m.TransitionTx(ctx, tx, locked, target, opts)
		if err != nil {
			return err
		}
		events.add(EventOrderStatusChanged, change)
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.flush(ctx, m.publisher)
	return order, nil
}

// TransitionTx runs the transition inside tx. The caller must hold the order
// row lock and publish the returned change after commit. order.Status is
// updated in place on success.
func (m *OrderStateMachine) TransitionTx(ctx context.Context, tx *gorm.DB, order *models.Order, target models.OrderStatus, opts TransitionOptions) (*OrderStatusChange, error) {
	from := order.Status
	if !CanTransition(from, target) {
		return nil, &IllegalTransitionError{From: from, To: target}
	}

	if err := m.checkEvidence(ctx, tx, order, target, opts); err != nil {
		return nil, err
	}

	orders := repository.NewOrderRepository(tx)
	rows, err := orders.UpdateStatusGuard(ctx, order.ID, from, target)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if rows == 0 {
		return nil, ErrConcurrentUpdate
	}

	if err := orders.AppendStatusLog(ctx, &models.OrderStatusLog{
		OrderID:    order.ID,
		FromStatus: from,
		ToStatus:   target,
		ChangedBy:  opts.ChangedBy,
		Note:       opts.Note,
	}); err != nil {
		return nil, fmt.Errorf("failed to write status log: %w", err)
	}

	order.Status = target
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       target,
	}).Info("order status changed")

	return &OrderStatusChange{OrderID: order.ID, UserID: order.UserID, From: from, To: target, Note: opts.Note}, nil
}

// checkEvidence loads payment and refund records itself; callers cannot assert them.
func (m *OrderStateMachine) checkEvidence(ctx context.Context, tx *gorm.DB, order *models.Order, target models.OrderStatus, opts TransitionOptions) error {
	payments := repository.NewPaymentRepository(tx)

	switch target {
	case models.OrderStatusPaid:
		paid, err := payments.CompletedSum(ctx, order.ID)
		if err != nil {
			return err
		}
		if paid.LessThan(order.TotalPrice) {
			return &IllegalTransitionError{From: order.Status, To: target, Reason: "payment evidence missing"}
		}

	case models.OrderStatusCancelled:
		paid, err := payments.CompletedSum(ctx, order.ID)
		if err != nil {
			return err
		}
		if order.Status == models.OrderStatusPending && !paid.IsPositive() {
			return nil
		}
		if opts.RefundID == nil {
			return &IllegalTransitionError{From: order.Status, To: target, Reason: "refund proof required"}
		}
		refund, err := payments.FindRefund(ctx, *opts.RefundID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &IllegalTransitionError{From: order.Status, To: target, Reason: "refund not found"}
		}
		if err != nil {
			return err
		}
		if refund.OrderID != order.ID {
			return &IllegalTransitionError{From: order.Status, To: target, Reason: "refund belongs to another order"}
		}
		if refund.Amount.LessThan(paid) {
			return &IllegalTransitionError{From: order.Status, To: target, Reason: "refund does not cover completed payments"}
		}
	}
	return nil
}

// History returns the recorded transitions of an order, oldest first.
func (m *OrderStateMachine) History(ctx context.Context, orderID uint) ([]models.OrderStatusLog, error) {
	if _, err := repository.NewOrderRepository(m.db).FindByID(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return repository.NewOrderRepository(m.db).StatusHistory(ctx, orderID)
}
