// Package events publishes order lifecycle notifications after commit.
// Publishing is best effort: a failed publish never undoes a committed order.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/models"
)

type EventType string

const (
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderCancelled     EventType = "order.cancelled"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

const TopicOrderEvents = "shop.order.events"

type OrderEvent struct {
	EventID     string             `json:"event_id"`
	EventType   EventType          `json:"event_type"`
	OrderID     int64              `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      int64              `json:"user_id"`
	Status      models.OrderStatus `json:"status"`
	PrevStatus  models.OrderStatus `json:"prev_status,omitempty"`
	TotalAmount models.Money       `json:"total_amount"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewOrderEvent snapshots the order into an event. prev is empty for
// order.placed.
func NewOrderEvent(eventType EventType, order *models.Order, prev models.OrderStatus) *OrderEvent {
	return &OrderEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		PrevStatus:  prev,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	}
}

// Key partitions events of one order together.
func (e *OrderEvent) Key() string {
	return e.OrderNumber
}

type Publisher interface {
	Publish(ctx context.Context, event *OrderEvent) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker. It is used when
// no brokers are configured.
type LogPublisher struct {
	logger *log.Entry
}

func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "order-events")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event *OrderEvent) error {
	p.logger.WithFields(log.Fields{
		"event_id":     event.EventID,
		"event_type":   event.EventType,
		"order_id":     event.OrderID,
		"order_number": event.OrderNumber,
		"status":       event.Status,
	}).Debug("order event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
