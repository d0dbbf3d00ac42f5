package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/models"
	"github.com/yeremiapane/food-checkout/repository"
	"github.com/yeremiapane/food-checkout/utils"
	"gorm.io/gorm"
)

// PaymentMetrics menyimpan metrik hasil rekonsiliasi
type PaymentMetrics struct {
	Checked            int64
	SuccessfulPayments int64
	FailedPayments     int64
	PendingPayments    int64
	LookupErrors       int64
	AvgResponseTime    int64 // dalam milisecond
}

// PaymentMonitor polls the gateway for payments that are still pending and
// feeds the answers to PaymentService.Reconcile.
type PaymentMonitor struct {
	db          *gorm.DB
	payments    *PaymentService
	gateway     PaymentGateway
	interval    time.Duration
	batchSize   int
	callTimeout time.Duration

	metrics    PaymentMetrics
	retryQueue []uint
	// cursor is the last payment id of the previous full batch, 0 -> start from the oldest
	cursor uint
	mutex  sync.Mutex
}

func NewPaymentMonitor(db *gorm.DB, payments *PaymentService, gateway PaymentGateway, interval time.Duration) *PaymentMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PaymentMonitor{
		db:          db,
		payments:    payments,
		gateway:     gateway,
		interval:    interval,
		batchSize:   50,
		callTimeout: payments.gatewayTimeout,
		retryQueue:  make([]uint, 0),
	}
}

// Start runs RunOnce on every tick until ctx is cancelled.
func (pm *PaymentMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()
		utils.InfoLogger.WithField("interval", pm.interval).Info("payment monitor started")

		for {
			select {
			case <-ctx.Done():
				utils.InfoLogger.Info("payment monitor stopped")
				return
			case <-ticker.C:
				if err := pm.RunOnce(ctx); err != nil {
					utils.ErrorLogger.WithError(err).Error("payment reconciliation run failed")
				}
			}
		}
	}()
}

// AddToRetryQueue menambahkan payment ID ke antrian retry
func (pm *PaymentMonitor) AddToRetryQueue(paymentID uint) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	for _, id := range pm.retryQueue {
		if id == paymentID {
			return
		}
	}
	pm.retryQueue = append(pm.retryQueue, paymentID)
}

func (pm *PaymentMonitor) drainRetryQueue() []uint {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	queue := pm.retryQueue
	pm.retryQueue = make([]uint, 0)
	return queue
}

// RunOnce checks one batch of pending gateway payments plus the retry queue.
// Batches rotate through the pending set so payments that never settle cannot
// starve newer ones.
func (pm *PaymentMonitor) RunOnce(ctx context.Context) error {
	payments := repository.NewPaymentRepository(pm.db)
	pending, err := pm.nextBatch(ctx, payments)
	if err != nil {
		return err
	}

	seen := make(map[uint]bool, len(pending))
	for _, p := range pending {
		seen[p.ID] = true
	}
	for _, id := range pm.drainRetryQueue() {
		if seen[id] {
			continue
		}
		p, err := payments.FindByID(ctx, id)
		if err != nil || p.Status != models.PaymentStatusPending {
			continue
		}
		pending = append(pending, *p)
		seen[id] = true
	}

	for i := range pending {
		pm.check(ctx, &pending[i])
	}
	return nil
}

// nextBatch reads up to batchSize payments after the cursor and wraps around
// to the oldest ones when the tail is shorter than a batch.
func (pm *PaymentMonitor) nextBatch(ctx context.Context, payments *repository.PaymentRepository) ([]models.Payment, error) {
	pm.mutex.Lock()
	after := pm.cursor
	pm.mutex.Unlock()

	batch, err := payments.PendingWithGateway(ctx, after, pm.batchSize)
	if err != nil {
		return nil, err
	}
	if len(batch) < pm.batchSize && after > 0 {
		head, err := payments.PendingWithGateway(ctx, 0, pm.batchSize-len(batch))
		if err != nil {
			return nil, err
		}
		for _, p := range head {
			if p.ID <= after {
				batch = append(batch, p)
			}
		}
	}

	next := uint(0)
	if len(batch) == pm.batchSize {
		next = batch[len(batch)-1].ID
	}
	pm.mutex.Lock()
	pm.cursor = next
	pm.mutex.Unlock()
	return batch, nil
}

func (pm *PaymentMonitor) check(ctx context.Context, p *models.Payment) {
	callCtx, cancel := context.WithTimeout(ctx, pm.callTimeout)
	defer cancel()

	start := time.Now()
	result, err := pm.gateway.Status(callCtx, p.Reference)
	elapsed := time.Since(start)

	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"payment_id": p.ID}).WithError(err).Error("gateway status lookup failed")
		pm.record(GatewayTimeout, elapsed, true)
		pm.AddToRetryQueue(p.ID)
		return
	}

	updated, err := pm.payments.Reconcile(ctx, p.ID, result)
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"payment_id": p.ID, "result": result.Status}).WithError(err).Error("reconcile from monitor failed")
		if updated == nil && !permanentReconcileError(err) {
			pm.AddToRetryQueue(p.ID)
		}
	}
	pm.record(result.Status, elapsed, false)
}

// permanentReconcileError -> asking again gives the same answer
func permanentReconcileError(err error) bool {
	var illegal *IllegalTransitionError
	return errors.As(err, &illegal) ||
		errors.Is(err, ErrPaymentFinalized) ||
		errors.Is(err, ErrPaymentNotFound)
}

// record updates counters and the running average of gateway latency.
func (pm *PaymentMonitor) record(status GatewayStatus, elapsed time.Duration, lookupErr bool) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	n := pm.metrics.Checked
	pm.metrics.AvgResponseTime = (pm.metrics.AvgResponseTime*n + elapsed.Milliseconds()) / (n + 1)
	pm.metrics.Checked++

	if lookupErr {
		pm.metrics.LookupErrors++
		return
	}
	switch status {
	case GatewayCompleted:
		pm.metrics.SuccessfulPayments++
	case GatewayFailed:
		pm.metrics.FailedPayments++
	default:
		pm.metrics.PendingPayments++
	}
}

// GetMetrics mengembalikan metrik saat ini
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.metrics
}
