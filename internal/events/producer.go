package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeRiskAssessed           = "risk.assessed"
	TypeAuthorizationCompleted = "authorization.completed"
	TypeRefundCompleted        = "refund.completed"
)

// Event is a decision record published for downstream consumers. Payloads
// carry last4 and fingerprints only, never card numbers.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

func NewEvent(eventType, key string, payload any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Producer publishes events to Kafka. In mock mode events are only logged.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	mockMode bool
}

func NewProducer(brokers []string, topic string, mockMode bool) (*Producer, error) {
	if mockMode {
		logger.Info("Kafka producer running in mock mode", zap.String("topic", topic))
		return &Producer{topic: topic, mockMode: true}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	logger.Info("Connected to Kafka", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewProducerWith(producer, topic), nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if p.mockMode {
		logger.Debug("Mock publish",
			zap.String("topic", p.topic),
			zap.String("type", event.Type),
			zap.String("key", event.Key),
		)
		metrics.RecordEventPublished(event.Type, true)
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	metrics.RecordEventPublished(event.Type, err == nil)
	if err != nil {
		logger.Error("Failed to publish event",
			zap.String("topic", p.topic),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send message: %w", err)
	}

	logger.Debug("Event published",
		zap.String("topic", p.topic),
		zap.String("type", event.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	if p.mockMode || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishAsync sends event in the background so callers never wait on the
// broker. Failures are logged by Publish.
func PublishAsync(p Publisher, event Event) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.Publish(ctx, event)
	}()
}
