package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"attestor/internal/platform/kafka/producer"
)

// Producer is the slice of the kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes each event as JSON keyed by wallet, so a wallet's
// history lands on one partition in order.
type KafkaStore struct {
	producer Producer
	topic    string
}

func NewKafkaStore(p Producer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	headers := map[string]string{"outcome": string(event.Outcome)}
	if event.RequestID != "" {
		headers["request_id"] = event.RequestID
	}
	if err := s.producer.Produce(ctx, &producer.Message{
		Topic:   s.topic,
		Key:     []byte(strings.ToLower(event.Wallet)),
		Value:   value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
