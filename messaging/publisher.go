package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/utils"
)

const (
	// ExchangeName is the topic exchange order events are published to.
	ExchangeName   = "checkout_events"
	publishTimeout = 10 * time.Second
)

// Channel is the subset of *amqp091.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends domain events to RabbitMQ with the event name as routing key.
type Publisher struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	mu       sync.Mutex
}

// Dial connects to url and declares the durable topic exchange.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	utils.InfoLogger.WithField("exchange", ExchangeName).Info("connected to rabbitmq")
	return &Publisher{conn: conn, channel: ch, exchange: ExchangeName}, nil
}

// NewPublisher wraps an already opened channel.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{channel: ch, exchange: exchange}
}

type envelope struct {
	Event      string      `json:"event"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publish implements services.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event string, data interface{}) error {
	now := time.Now().UTC()
	body, err := json.Marshal(envelope{Event: event, OccurredAt: now, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, event, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{"exchange": p.exchange, "routing_key": event}).WithError(err).Error("message publish failed")
		return fmt.Errorf("failed to publish message: %w", err)
	}
	utils.InfoLogger.WithFields(logrus.Fields{"routing_key": event, "size": len(body)}).Debug("message published")
	return nil
}

func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
