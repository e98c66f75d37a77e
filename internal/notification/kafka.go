package notification

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Topic carries all engine notification events.
const Topic = "wallet_booking_events"

// KafkaNotifier publishes notification events to Kafka for asynchronous
// delivery by the email worker.
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier constructs a notifier writing to the given brokers.
func NewKafkaNotifier(brokers []string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Send publishes the message as a JSON event keyed by destination.
func (n *KafkaNotifier) Send(ctx context.Context, message Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(message.Destination),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
