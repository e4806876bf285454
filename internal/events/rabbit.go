package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

// RabbitSender publishes persistent JSON messages to the events topic exchange.
type RabbitSender struct {
	ch *amqp.Channel
}

func NewRabbitSender(conn *amqp.Connection) (*RabbitSender, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &RabbitSender{ch: ch}, nil
}

func (s *RabbitSender) Send(ctx context.Context, msg Message) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	return s.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		msg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Headers["eventId"],
			Headers:      headers,
			Body:         msg.Body,
		},
	)
}

func (s *RabbitSender) Close() error {
	return s.ch.Close()
}
