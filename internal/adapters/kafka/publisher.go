// Package kafka публикует события по заказам.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/larriantoniy/oplati_pay_bot/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           5 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish writes the event keyed by order id so both rows of one order land in the same partition.
func (p *Publisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: encode event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: msg,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: publish %s: %w", event.OrderID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Noop используется, когда брокеры не настроены.
type Noop struct{}

func (Noop) Publish(context.Context, domain.OrderEvent) error { return nil }

func (Noop) Close() error { return nil }
