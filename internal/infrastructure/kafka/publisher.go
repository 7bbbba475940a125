package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher pushes fulfillment lifecycle events onto the bus for
// downstream consumers (customer notifications, analytics).
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (k *KafkaPublisher) Publish(event domain.FulfillmentEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: msg,
		Time:  time.Now(),
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// NopPublisher is used when the kafka integration is disabled by config.
type NopPublisher struct{}

func (NopPublisher) Publish(domain.FulfillmentEvent) error { return nil }
