package events

import (
	"context"
	"log"
)

// LogSender writes events to the log instead of a broker.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Printf("event %s key=%s: %s", msg.RoutingKey, msg.Key, msg.Body)
	return nil
}

func (s *LogSender) Close() error { return nil }
