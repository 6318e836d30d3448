package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Publisher delivers messages. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Nop discards every message.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Message) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// AMQPPublisher publishes to a durable direct exchange, routing each message
// by its type.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewAMQPPublisher dials url and declares exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &AMQPPublisher{conn: conn, channel: channel, exchange: exchange}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return p, nil
}

// Publish sends msg with a bounded wait.
func (p *AMQPPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		msg.Type,   // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published notification",
		"type", msg.Type,
		"user_id", msg.UserID,
		"exchange", p.exchange)
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Send builds and publishes a message, logging rather than returning any
// failure.
func Send(ctx context.Context, p Publisher, msgType, userID string, payload any) {
	if p == nil {
		return
	}
	msg, err := NewMessage(msgType, userID, payload)
	if err == nil {
		err = p.Publish(ctx, msg)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish notification", "type", msgType, "error", err)
	}
}
