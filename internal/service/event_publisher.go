package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/pkg/kafka"
)

// EventPublisher defines the interface for publishing invoice events
type EventPublisher interface {
	// PublishItemAdded publishes an event after a seat is claimed
	PublishItemAdded(ctx context.Context, event *domain.InvoiceEvent) error

	// PublishItemRemoved publishes an event after an item is removed
	PublishItemRemoved(ctx context.Context, event *domain.InvoiceEvent) error

	// PublishInvoicePaid publishes an event after an invoice is paid
	PublishInvoicePaid(ctx context.Context, event *domain.InvoiceEvent) error

	// PublishInvoiceExpired publishes an event after a sweep expires holds
	PublishInvoiceExpired(ctx context.Context, event *domain.InvoiceEvent) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "invoice-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "matchticketselling"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "matchticketselling-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishItemAdded publishes an event after a seat is claimed
func (p *KafkaEventPublisher) PublishItemAdded(ctx context.Context, event *domain.InvoiceEvent) error {
	return p.publishEvent(ctx, domain.InvoiceEventItemAdded, event)
}

// PublishItemRemoved publishes an event after an item is removed
func (p *KafkaEventPublisher) PublishItemRemoved(ctx context.Context, event *domain.InvoiceEvent) error {
	return p.publishEvent(ctx, domain.InvoiceEventItemRemoved, event)
}

// PublishInvoicePaid publishes an event after an invoice is paid
func (p *KafkaEventPublisher) PublishInvoicePaid(ctx context.Context, event *domain.InvoiceEvent) error {
	return p.publishEvent(ctx, domain.InvoiceEventPaid, event)
}

// PublishInvoiceExpired publishes an event after a sweep expires holds
func (p *KafkaEventPublisher) PublishInvoiceExpired(ctx context.Context, event *domain.InvoiceEvent) error {
	return p.publishEvent(ctx, domain.InvoiceEventExpired, event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// publishEvent publishes an invoice event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.InvoiceEventType, event *domain.InvoiceEvent) error {
	event.EventType = eventType
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     event.EventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishItemAdded is a no-op
func (p *NoOpEventPublisher) PublishItemAdded(ctx context.Context, event *domain.InvoiceEvent) error {
	return nil
}

// PublishItemRemoved is a no-op
func (p *NoOpEventPublisher) PublishItemRemoved(ctx context.Context, event *domain.InvoiceEvent) error {
	return nil
}

// PublishInvoicePaid is a no-op
func (p *NoOpEventPublisher) PublishInvoicePaid(ctx context.Context, event *domain.InvoiceEvent) error {
	return nil
}

// PublishInvoiceExpired is a no-op
func (p *NoOpEventPublisher) PublishInvoiceExpired(ctx context.Context, event *domain.InvoiceEvent) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
