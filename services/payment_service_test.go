package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
)

func completedSum(t *testing.T, env *testEnv, orderID uint) decimal.Decimal {
	t.Helper()
	sum, err := repository.NewPaymentRepository(env.db).CompletedSum(context.Background(), orderID)
	require.NoError(t, err)
	return sum
}

func TestRecordPayment_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "val@test.com", 2)

	tests := []struct {
		name    string
		method  models.PaymentMethod
		amount  string
		wantErr error
	}{
		{"unknown method", "bitcoin", "20.00", ErrInvalidPaymentMethod},
		{"zero amount", models.PaymentMethodCash, "0", ErrInvalidAmount},
		{"negative amount", models.PaymentMethodCash, "-1.00", ErrInvalidAmount},
		{"three decimals", models.PaymentMethodCard, "1.005", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.payments.RecordPayment(ctx, order.ID, tt.method, money(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := env.payments.RecordPayment(ctx, 424242, models.PaymentMethodCash, money("1.00"))
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, money("20.01"))
	var over *OverpaymentError
	assert.ErrorAs(t, err, &over)
}

func TestReconcile_CompletedPaysOrderOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "idem@test.com", 2)

	p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, p.Status)
	assert.NotEmpty(t, p.Reference)

	result := GatewayResult{Status: GatewayCompleted, Reference: "trx-1"}
	first, err := env.payments.Reconcile(ctx, p.ID, result)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, first.Status)
	assert.NotNil(t, first.PaymentTime)

	second, err := env.payments.Reconcile(ctx, p.ID, result)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, second.Status)

	got, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)

	history, err := env.states.History(ctx, order.ID)
	require.NoError(t, err)
	paid := 0
	for _, h := range history {
		if h.ToStatus == models.OrderStatusPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, env.events.count(EventOrderStatusChanged))

	// paid tidak bisa kembali ke pending
	_, err = env.states.Transition(ctx, order.ID, models.OrderStatusPending, TransitionOptions{})
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, models.OrderStatusPaid, illegal.From)
}

func TestReconcile_PartialPaymentsAccumulate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "partial@test.com", 2) // 20.00

	p1, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, money("12.00"))
	require.NoError(t, err)
	_, err = env.payments.ConfirmCash(ctx, p1.ID)
	require.NoError(t, err)

	got, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	// 12 + 9 > 20
	_, err = env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, money("9.00"))
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.True(t, over.Completed.Equal(money("12.00")))

	p2, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, money("8.00"))
	require.NoError(t, err)
	_, err = env.payments.ConfirmCash(ctx, p2.ID)
	require.NoError(t, err)

	got, err = env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
	assert.True(t, completedSum(t, env, order.ID).Equal(order.TotalPrice))
}

func TestReconcile_CompletedSumNeverExceedsTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "cap@test.com", 1) // 10.00

	// dua payment pending yang masing-masing sah, tapi bersama melebihi total
	p1, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, money("10.00"))
	require.NoError(t, err)
	p2, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, money("10.00"))
	require.NoError(t, err)

	_, err = env.payments.Reconcile(ctx, p1.ID, GatewayResult{Status: GatewayCompleted})
	require.NoError(t, err)

	// order sudah paid, completion kedua ditolak
	_, err = env.payments.Reconcile(ctx, p2.ID, GatewayResult{Status: GatewayCompleted})
	require.Error(t, err)

	assert.True(t, completedSum(t, env, order.ID).Equal(money("10.00")))
}

func TestReconcile_OverpaymentMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "overpay@test.com", 2) // 20.00

	p1, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, money("15.00"))
	require.NoError(t, err)
	p2, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, money("5.00"))
	require.NoError(t, err)
	// p3 dicatat saat completed masih 0
	p3, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, money("10.00"))
	require.NoError(t, err)

	_, err = env.payments.Reconcile(ctx, p1.ID, GatewayResult{Status: GatewayCompleted})
	require.NoError(t, err)

	failed, err := env.payments.Reconcile(ctx, p3.ID, GatewayResult{Status: GatewayCompleted})
	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	require.NotNil(t, failed)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "overpayment", failed.FailureReason)

	_, err = env.payments.Reconcile(ctx, p2.ID, GatewayResult{Status: GatewayCompleted})
	require.NoError(t, err)
	assert.True(t, completedSum(t, env, order.ID).Equal(money("20.00")))

	got, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)
}

func TestReconcile_FailedIsFinal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "fail@test.com", 1)

	p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
	require.NoError(t, err)

	failed, err := env.payments.Reconcile(ctx, p.ID, GatewayResult{Status: GatewayFailed, Reason: "deny"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.Status)
	assert.Equal(t, "deny", failed.FailureReason)

	_, err = env.payments.Reconcile(ctx, p.ID, GatewayResult{Status: GatewayCompleted})
	assert.ErrorIs(t, err, ErrPaymentFinalized)

	_, err = env.payments.Reconcile(ctx, p.ID, GatewayResult{Status: "weird"})
	assert.ErrorIs(t, err, ErrUnknownGatewayStatus)

	_, err = env.payments.Reconcile(ctx, 9999, GatewayResult{Status: GatewayCompleted})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReconcile_ConcurrentCompletionsPayOrderOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "concurrent-pay@test.com", 2)

	half := order.TotalPrice.Div(decimal.NewFromInt(2))
	first, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, half)
	require.NoError(t, err)
	second, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodPaypal, half)
	require.NoError(t, err)
	targets := []uint{first.ID, second.ID}

	var (
		wg   sync.WaitGroup
		errs = make([]error, 8)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.payments.Reconcile(ctx, targets[i%2], GatewayResult{Status: GatewayCompleted})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "reconcile %d", i)
	}

	got, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, got.Status)

	sum, err := repository.NewPaymentRepository(env.db).CompletedSum(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(order.TotalPrice), "completed sum %s", sum)

	history, err := env.states.History(ctx, order.ID)
	require.NoError(t, err)
	paid := 0
	for _, h := range history {
		if h.ToStatus == models.OrderStatusPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, env.events.count(EventOrderStatusChanged))
}

func TestRecordPayment_RejectsClosedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "closed@test.com", 1)

	_, err := env.states.Transition(ctx, order.ID, models.OrderStatusCancelled, TransitionOptions{Note: "changed mind"})
	require.NoError(t, err)

	_, err = env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, money("1.00"))
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestCharge_GatewayOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("completed pays the order", func(t *testing.T) {
		env := newTestEnv(t)
		_, order := env.checkedOutOrder(t, "charge-ok@test.com", 1)
		env.gateway.chargeFn = func(_ context.Context, req ChargeRequest) (GatewayResult, error) {
			assert.True(t, req.Amount.Equal(order.TotalPrice))
			assert.Equal(t, order.CustomerIdentifier(), req.CustomerRef)
			return GatewayResult{Status: GatewayCompleted, Reference: "trx-ok"}, nil
		}
		p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
		require.NoError(t, err)

		charged, err := env.payments.Charge(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, charged.Status)
		assert.Equal(t, "trx-ok", charged.GatewayReference)

		got, err := env.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaid, got.Status)
	})

	t.Run("timeout leaves payment pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.payments.gatewayTimeout = 20 * time.Millisecond
		_, order := env.checkedOutOrder(t, "charge-slow@test.com", 1)
		env.gateway.chargeFn = func(ctx context.Context, _ ChargeRequest) (GatewayResult, error) {
			<-ctx.Done()
			return GatewayResult{}, ctx.Err()
		}
		p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodPaypal, order.TotalPrice)
		require.NoError(t, err)

		got, err := env.payments.Charge(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, got.Status)

		o, err := env.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPending, o.Status)
	})

	t.Run("transport error is returned", func(t *testing.T) {
		env := newTestEnv(t)
		_, order := env.checkedOutOrder(t, "charge-err@test.com", 1)
		env.gateway.chargeFn = func(context.Context, ChargeRequest) (GatewayResult, error) {
			return GatewayResult{}, errors.New("connection refused")
		}
		p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
		require.NoError(t, err)

		_, err = env.payments.Charge(ctx, p.ID)
		assert.Error(t, err)
		stored, err := env.payments.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPending, stored.Status)
	})

	t.Run("cash is never charged", func(t *testing.T) {
		env := newTestEnv(t)
		_, order := env.checkedOutOrder(t, "charge-cash@test.com", 1)
		p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, order.TotalPrice)
		require.NoError(t, err)

		_, err = env.payments.Charge(ctx, p.ID)
		assert.ErrorIs(t, err, ErrCashNotCharged)
		assert.Zero(t, env.gateway.chargeCalls)
	})
}

func TestConfirmCash_RejectsCardPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "cashonly@test.com", 1)
	p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
	require.NoError(t, err)

	_, err = env.payments.ConfirmCash(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestRecordRefund_CancelsPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "refund@test.com", 2)
	staff := seedUser(t, env.db, "staff@test.com")

	_, _, err := env.payments.RecordRefund(ctx, order.ID, money("20.00"), "nothing paid", &staff.ID)
	assert.ErrorIs(t, err, ErrNothingToRefund)

	p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCash, order.TotalPrice)
	require.NoError(t, err)
	_, err = env.payments.ConfirmCash(ctx, p.ID)
	require.NoError(t, err)

	// paid tanpa refund tidak bisa dibatalkan
	_, err = env.states.Transition(ctx, order.ID, models.OrderStatusCancelled, TransitionOptions{})
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "refund proof required", illegal.Reason)

	_, _, err = env.payments.RecordRefund(ctx, order.ID, money("5.00"), "partial", &staff.ID)
	assert.ErrorIs(t, err, ErrRefundMismatch)

	refund, cancelled, err := env.payments.RecordRefund(ctx, order.ID, money("20.00"), "kitchen closed", &staff.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, order.ID, refund.OrderID)
	assert.Equal(t, 1, env.events.count(EventRefundRecorded))

	// cancelled is terminal
	_, err = env.states.Transition(ctx, order.ID, models.OrderStatusDelivered, TransitionOptions{})
	assert.ErrorAs(t, err, &illegal)

	_, _, err = env.payments.RecordRefund(ctx, order.ID, money("20.00"), "again", &staff.ID)
	assert.ErrorAs(t, err, &illegal)
}

func TestReconcile_CompletionAfterCancelIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, order := env.checkedOutOrder(t, "late@test.com", 1)

	p, err := env.payments.RecordPayment(ctx, order.ID, models.PaymentMethodCard, order.TotalPrice)
	require.NoError(t, err)
	_, err = env.states.Transition(ctx, order.ID, models.OrderStatusCancelled, TransitionOptions{})
	require.NoError(t, err)

	_, err = env.payments.Reconcile(ctx, p.ID, GatewayResult{Status: GatewayCompleted})
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)

	stored, err := env.payments.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}
