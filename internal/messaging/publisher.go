package messaging

import (
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Routing keys for the domain events this service emits and consumes.
const (
	EventOrderSubmitted       = "order.submitted"
	EventOrderCancelRequested = "order.cancel_requested"
	EventOrderPlaced          = "order.placed"
	EventTradeExecuted        = "trade.executed"
	EventOrderFilled          = "order.filled"
	EventOrderCancelled       = "order.cancelled"
)

// Publisher emits domain events (order placed, trade executed) to a durable
// RabbitMQ topic exchange. Consumers downstream handle notifications,
// analytics and websocket fan-out; the trading core stays purely
// computational.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

func NewPublisher(amqpURL, exchange string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Topic exchange so consumers can bind patterns like trade.* or order.*.
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish sends one JSON-encoded event with the given routing key.
func (p *Publisher) Publish(routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return err
	}

	p.logger.Debug("event published", zap.String("routing_key", routingKey))
	return nil
}

// Close shuts down RabbitMQ resources gracefully.
func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
