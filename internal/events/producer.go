package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/wandermap/subscription-service/internal/domain"
	"github.com/wandermap/subscription-service/pkg/logger"
)

const (
	TopicSubscriptionPurchased = "subscription.purchased"
	TopicSubscriptionCancelled = "subscription.cancelled"
	TopicSubscriptionExpired   = "subscription.expired"
	TopicUsageTracked          = "subscription.usage_tracked"
)

// SubscriptionEvent представляет событие жизненного цикла подписки для Kafka
type SubscriptionEvent struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Tier      domain.Tier   `json:"tier"`
	Status    domain.Status `json:"status"`
	Action    string        `json:"action,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SubscriptionProducer интерфейс для отправки событий подписок
type SubscriptionProducer interface {
	PublishPurchased(ctx context.Context, sub *domain.Subscription) error
	PublishCancelled(ctx context.Context, sub *domain.Subscription) error
	PublishExpired(ctx context.Context, sub *domain.Subscription) error
	PublishUsageTracked(ctx context.Context, sub *domain.Subscription, action domain.MeteredAction) error
	Close() error
}

type kafkaSubscriptionProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaSubscriptionProducer создает новый продюсер событий подписок
func NewKafkaSubscriptionProducer(producer sarama.SyncProducer, log *logger.Logger) SubscriptionProducer {
	return &kafkaSubscriptionProducer{
		producer: producer,
		log:      log,
	}
}

// PublishPurchased публикует событие о покупке подписки
func (p *kafkaSubscriptionProducer) PublishPurchased(ctx context.Context, sub *domain.Subscription) error {
	return p.publishEvent(TopicSubscriptionPurchased, sub, "")
}

// PublishCancelled публикует событие об отмене подписки
func (p *kafkaSubscriptionProducer) PublishCancelled(ctx context.Context, sub *domain.Subscription) error {
	return p.publishEvent(TopicSubscriptionCancelled, sub, "")
}

// PublishExpired публикует событие об истечении подписки
func (p *kafkaSubscriptionProducer) PublishExpired(ctx context.Context, sub *domain.Subscription) error {
	return p.publishEvent(TopicSubscriptionExpired, sub, "")
}

// PublishUsageTracked публикует событие об учете использования
func (p *kafkaSubscriptionProducer) PublishUsageTracked(ctx context.Context, sub *domain.Subscription, action domain.MeteredAction) error {
	return p.publishEvent(TopicUsageTracked, sub, string(action))
}

// publishEvent публикует событие подписки в Kafka
func (p *kafkaSubscriptionProducer) publishEvent(topic string, sub *domain.Subscription, action string) error {
	event := SubscriptionEvent{
		ID:        uuid.New().String(),
		UserID:    sub.UserID,
		Tier:      sub.Tier,
		Status:    sub.Status,
		Action:    action,
		Timestamp: time.Now(),
	}

	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(sub.UserID),
		Value: sarama.ByteEncoder(messageValue),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}

	p.log.Debugw("Published subscription event",
		"topic", topic,
		"user_id", sub.UserID,
		"partition", partition,
		"offset", offset,
	)

	return nil
}

// Close закрывает продюсер
func (p *kafkaSubscriptionProducer) Close() error {
	return p.producer.Close()
}
