// Package events publishes order lifecycle notifications to a message broker.
package events

import (
	"context"
	"fmt"
	"time"

	"av-rental/internal/config"
	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	TypeOrderPaid          = "order.paid"
	TypeOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the JSON body of every published message.
type OrderEvent struct {
	Type        string            `json:"type"`
	OrderID     uuid.UUID         `json:"orderId"`
	UserID      string            `json:"userId"`
	Status      model.OrderStatus `json:"status"`
	TotalAmount int64             `json:"totalAmount"`
	Currency    string            `json:"currency"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// NewOrderEvent snapshots order into an event of the given type.
func NewOrderEvent(eventType string, order *model.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		OccurredAt:  at.UTC(),
	}
}

// Publisher sends order events.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

type nopPublisher struct {
	logger zerolog.Logger
}

// NewNopPublisher returns a publisher that only logs at debug level.
func NewNopPublisher(logger zerolog.Logger) Publisher {
	return &nopPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *nopPublisher) Publish(ctx context.Context, event OrderEvent) error {
	p.logger.Debug().
		Str("type", event.Type).
		Str("order_id", event.OrderID.String()).
		Msg("event dropped: no broker configured")
	return nil
}

func (p *nopPublisher) Close() error { return nil }

// New builds the publisher selected by cfg.Broker.
func New(cfg config.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	switch cfg.Broker {
	case config.BrokerNone, "":
		return NewNopPublisher(logger), nil
	case config.BrokerRabbitMQ:
		p, err := NewRabbitPublisher(cfg.RabbitMQURL, cfg.Topic, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.BrokerKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}
