package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sellora-core/internal/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// amqpDispatcher publishes order events to a durable topic exchange with
// routing keys like orders.status.processing.
type amqpDispatcher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPDispatcher(amqpURL, exchange string) (Dispatcher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &amqpDispatcher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}, nil
}

func (d *amqpDispatcher) OrderStatusChanged(ctx context.Context, ev OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := "orders.status." + strings.ToLower(ev.Status)

	err = d.channel.Publish(
		d.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	logger.FromCtx(ctx).Debug("order event published",
		zap.String("order_id", ev.OrderID),
		zap.String("routing_key", routingKey),
	)
	return nil
}

func (d *amqpDispatcher) Close() error {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
