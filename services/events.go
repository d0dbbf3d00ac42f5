package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/utils"
)

// Event names
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventInvoiceGenerated   = "invoice_generated"
	EventPaymentRecorded    = "payment_recorded"
	EventPaymentUpdated     = "payment_updated"
	EventRefundRecorded     = "refund_recorded"
)

// EventPublisher receives domain events after the owning transaction committed.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data interface{}) error
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event string, data interface{}) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

type pendingEvent struct {
	name string
	data interface{}
}

// outbox collects events inside a transaction; flush runs after commit.
type outbox []pendingEvent

func (o *outbox) add(name string, data interface{}) {
	*o = append(*o, pendingEvent{name: name, data: data})
}

func (o outbox) flush(ctx context.Context, p EventPublisher) {
	if p == nil {
		return
	}
	for _, e := range o {
		if err := p.Publish(ctx, e.name, e.data); err != nil {
			// event delivery never undoes a committed change
			utils.ErrorLogger.WithFields(logrus.Fields{"event": e.name}).WithError(err).Error("failed to publish event")
		}
	}
}
