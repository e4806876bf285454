package events

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaTopic maps a routing key to the topic it is published on.
func KafkaTopic(routingKey string) string {
	return "littlecarts." + routingKey
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaSender writes events keyed by partition key, so one user's events stay ordered.
type KafkaSender struct {
	w messageWriter
}

func NewKafkaSender(brokers []string) *KafkaSender {
	return &KafkaSender{w: &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	km := kafkago.Message{
		Topic: KafkaTopic(msg.RoutingKey),
		Key:   []byte(msg.Key),
		Value: msg.Body,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	if err := s.w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (s *KafkaSender) Close() error {
	return s.w.Close()
}
