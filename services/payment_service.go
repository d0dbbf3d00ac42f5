package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/utils"
	"gorm.io/gorm"
)

const defaultGatewayTimeout = 15 * time.Second

// PaymentUpdate is published whenever a payment row changes.
type PaymentUpdate struct {
	Payment     *models.Payment    `json:"payment"`
	UserID      uint               `json:"user_id"`
	OrderStatus models.OrderStatus `json:"order_status"`
}

func (u PaymentUpdate) OwnerID() uint { return u.UserID }

// PaymentService records payments and reconciles gateway results into them.
type PaymentService struct {
	db             *gorm.DB
	orders         *OrderStateMachine
	gateway        PaymentGateway
	gatewayTimeout time.Duration
	publisher      EventPublisher
	now            func() time.Time
}

func NewPaymentService(db *gorm.DB, orders *OrderStateMachine, gateway PaymentGateway, gatewayTimeout time.Duration, publisher EventPublisher) *PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return &PaymentService{
		db:             db,
		orders:         orders,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		publisher:      publisher,
		now:            time.Now,
	}
}

// validAmount accepts positive amounts with at most two decimal places.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

// RecordPayment creates a pending payment for a pending order.
func (s *PaymentService) RecordPayment(ctx context.Context, orderID uint, method models.PaymentMethod, amount decimal.Decimal) (*models.Payment, error) {
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}

	unlock := processLocks.Lock(orderLockKey(orderID))
	defer unlock()

	var (
		payment *models.Payment
		ownerID uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := repository.NewOrderRepository(tx).LockByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrOrderNotPayable)
		}
		ownerID = order.UserID

		payments := repository.NewPaymentRepository(tx)
		completed, err := payments.CompletedSum(ctx, order.ID)
		if err != nil {
			return err
		}
		if completed.Add(amount).GreaterThan(order.TotalPrice) {
			return &OverpaymentError{OrderID: order.ID, Total: order.TotalPrice, Completed: completed, Attempted: amount}
		}

		payment = &models.Payment{
			OrderID:   order.ID,
			Method:    method,
			Status:    models.PaymentStatusPending,
			Amount:    amount.Round(2),
			Reference: uuid.NewString(),
		}
		if err := payments.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   orderID,
		"method":     method,
		"amount":     payment.Amount.StringFixed(2),
	}).Info("payment recorded")
	outbox{{name: EventPaymentRecorded, data: PaymentUpdate{Payment: payment, UserID: ownerID, OrderStatus: models.OrderStatusPending}}}.flush(ctx, s.publisher)
	return payment, nil
}

// Reconcile applies a gateway result to a payment. A repeated completed result
// is a no-op, and the paid transition fires at most once per order.
func (s *PaymentService) Reconcile(ctx context.Context, paymentID uint, result GatewayResult) (*models.Payment, error) {
	current, err := repository.NewPaymentRepository(s.db).FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}

	unlock := processLocks.Lock(orderLockKey(current.OrderID))
	defer unlock()

	var (
		payment *models.Payment
		events  outbox
		// set when the row is committed as failed but the caller still gets an error
		rejected error
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payments := repository.NewPaymentRepository(tx)
		p, err := payments.LockByID(ctx, paymentID)
		if err != nil {
			return err
		}
		order, err := repository.NewOrderRepository(tx).LockByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		payment = p

		switch result.Status {
		case GatewayCompleted:
			if p.Status == models.PaymentStatusCompleted {
				return nil
			}
			if p.Status == models.PaymentStatusFailed {
				return fmt.Errorf("payment %d is failed: %w", p.ID, ErrPaymentFinalized)
			}
			if order.Status.IsTerminal() {
				return &IllegalTransitionError{From: order.Status, To: models.OrderStatusPaid, Reason: "order is closed"}
			}

			completed, err := payments.CompletedSum(ctx, order.ID)
			if err != nil {
				return err
			}
			if completed.Add(p.Amount).GreaterThan(order.TotalPrice) {
				if err := s.markFailed(ctx, payments, p, "overpayment"); err != nil {
					return err
				}
				rejected = &OverpaymentError{OrderID: order.ID, Total: order.TotalPrice, Completed: completed, Attempted: p.Amount}
				events.add(EventPaymentUpdated, PaymentUpdate{Payment: p, UserID: order.UserID, OrderStatus: order.Status})
				return nil
			}

			now := s.now()
			fields := map[string]interface{}{"status": models.PaymentStatusCompleted, "payment_time": now}
			if result.Reference != "" {
				fields["gateway_reference"] = result.Reference
			}
			rows, err := payments.UpdateStatusGuard(ctx, p.ID, models.PaymentStatusPending, fields)
			if err != nil {
				return fmt.Errorf("failed to complete payment: %w", err)
			}
			if rows == 0 {
				return ErrConcurrentUpdate
			}
			p.Status = models.PaymentStatusCompleted
			p.PaymentTime = &now
			if result.Reference != "" {
				p.GatewayReference = result.Reference
			}

			if order.Status == models.OrderStatusPending && !completed.Add(p.Amount).LessThan(order.TotalPrice) {
				change, err := s.orders.TransitionTx(ctx, tx, order, models.OrderStatusPaid, TransitionOptions{
					Note: "payment " + p.Reference,
				})
				if err != nil {
					return err
				}
				events.add(EventOrderStatusChanged, change)
			}
			events.add(EventPaymentUpdated, PaymentUpdate{Payment: p, UserID: order.UserID, OrderStatus: order.Status})

		case GatewayFailed:
			if p.Status != models.PaymentStatusPending {
				return nil
			}
			reason := result.Reason
			if reason == "" {
				reason = "declined by gateway"
			}
			if err := s.markFailed(ctx, payments, p, reason); err != nil {
				return err
			}
			events.add(EventPaymentUpdated, PaymentUpdate{Payment: p, UserID: order.UserID, OrderStatus: order.Status})

		case GatewayPending, GatewayTimeout:
			// no outcome yet, the reconciliation job asks again later
			if result.Reference != "" && p.GatewayReference == "" && p.Status == models.PaymentStatusPending {
				if err := payments.SetGatewayReference(ctx, p.ID, result.Reference); err != nil {
					return err
				}
				p.GatewayReference = result.Reference
			}

		default:
			return fmt.Errorf("%w: %q", ErrUnknownGatewayStatus, result.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"result":     result.Status,
		"status":     payment.Status,
	}).Info("payment reconciled")

	events.flush(ctx, s.publisher)
	if rejected != nil {
		return payment, rejected
	}
	return payment, nil
}

func (s *PaymentService) markFailed(ctx context.Context, payments *repository.PaymentRepository, p *models.Payment, reason string) error {
	rows, err := payments.UpdateStatusGuard(ctx, p.ID, models.PaymentStatusPending, map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
	})
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentUpdate
	}
	p.Status = models.PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

// Charge sends a pending card/paypal payment to the gateway. A call that runs
// past the gateway timeout leaves the payment pending.
func (s *PaymentService) Charge(ctx context.Context, paymentID uint) (*models.Payment, error) {
	if s.gateway == nil {
		return nil, errors.New("payment gateway is not configured")
	}
	payment, err := repository.NewPaymentRepository(s.db).FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, fmt.Errorf("payment %d is %s: %w", payment.ID, payment.Status, ErrPaymentFinalized)
	}
	if payment.Method == models.PaymentMethodCash {
		return nil, ErrCashNotCharged
	}
	order, err := repository.NewOrderRepository(s.db).FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	result, err := s.gateway.Charge(callCtx, ChargeRequest{
		Reference:   payment.Reference,
		OrderID:     order.ID,
		Amount:      payment.Amount,
		Method:      payment.Method,
		CustomerRef: order.CustomerIdentifier(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			utils.ErrorLogger.WithFields(logrus.Fields{"payment_id": payment.ID}).Error("gateway charge timed out, payment left pending")
			result = GatewayResult{Status: GatewayTimeout}
		} else {
			return nil, fmt.Errorf("gateway charge failed: %w", err)
		}
	}
	return s.Reconcile(ctx, payment.ID, result)
}

// ConfirmCash completes a cash payment that staff received at the counter.
func (s *PaymentService) ConfirmCash(ctx context.Context, paymentID uint) (*models.Payment, error) {
	payment, err := repository.NewPaymentRepository(s.db).FindByID(ctx, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment.Method != models.PaymentMethodCash {
		return nil, fmt.Errorf("payment %d is %s: %w", payment.ID, payment.Method, ErrInvalidPaymentMethod)
	}
	return s.Reconcile(ctx, payment.ID, GatewayResult{Status: GatewayCompleted})
}

// RecordRefund stores the compensating refund and cancels the order with it as proof.
func (s *PaymentService) RecordRefund(ctx context.Context, orderID uint, amount decimal.Decimal, reason string, staffID *uint) (*models.Refund, *models.Order, error) {
	if !validAmount(amount) {
		return nil, nil, ErrInvalidAmount
	}

	unlock := processLocks.Lock(orderLockKey(orderID))
	defer unlock()

	var (
		refund *models.Refund
		order  *models.Order
		events outbox
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := repository.NewOrderRepository(tx).LockByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if !CanTransition(locked.Status, models.OrderStatusCancelled) {
			return &IllegalTransitionError{From: locked.Status, To: models.OrderStatusCancelled}
		}

		payments := repository.NewPaymentRepository(tx)
		completed, err := payments.CompletedSum(ctx, locked.ID)
		if err != nil {
			return err
		}
		if !completed.IsPositive() {
			return ErrNothingToRefund
		}
		if !amount.Equal(completed) {
			return fmt.Errorf("%w: refund %s, completed %s", ErrRefundMismatch, amount.StringFixed(2), completed.StringFixed(2))
		}

		refund = &models.Refund{
			OrderID:   locked.ID,
			Amount:    amount,
			Reference: uuid.NewString(),
			Reason:    reason,
			CreatedBy: staffID,
		}
		if err := payments.CreateRefund(ctx, refund); err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}

		change, err := s.orders.TransitionTx(ctx, tx, locked, models.OrderStatusCancelled, TransitionOptions{
			RefundID:  &refund.ID,
			ChangedBy: staffID,
			Note:      "refund " + refund.Reference,
		})
		if err != nil {
			return err
		}
		order = locked
		events.add(EventRefundRecorded, refund)
		events.add(EventOrderStatusChanged, change)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	events.flush(ctx, s.publisher)
	return refund, order, nil
}

func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	p, err := repository.NewPaymentRepository(s.db).FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// FindByReference resolves the reference sent to the gateway as its order id.
func (s *PaymentService) FindByReference(ctx context.Context, ref string) (*models.Payment, error) {
	p, err := repository.NewPaymentRepository(s.db).FindByReference(ctx, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

func (s *PaymentService) List(ctx context.Context, q repository.PaymentQuery) (repository.Result[models.Payment], error) {
	return repository.NewPaymentRepository(s.db).List(ctx, q)
}
