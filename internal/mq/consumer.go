package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — обработчик сообщения.
// Ошибка обработки логируется, сообщение отклоняется без повторной доставки.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	Message    Message
	RoutingKey RoutingKey
	Raw        amqp.Delivery
}

// DeclareFunc объявляет очередь на канале и возвращает её имя.
// Вызывается при каждом (пере)подключении: временные очереди
// исчезают вместе с соединением.
type DeclareFunc func(ch *amqp.Channel) (Queue, error)

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Declare — объявление очереди.
	Declare DeclareFunc

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — сколько сообщений брокер отдаёт без ack. Default: 16.
	Prefetch int
}

// Consumer читает сообщения из очереди.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	declare  DeclareFunc
	handler  Handler
	prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 16
	}
	return &Consumer{
		conn:     conn,
		logger:   logger,
		declare:  cfg.Declare,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run читает сообщения до отмены ctx. Разрыв соединения переживается:
// после reconnect очередь объявляется заново.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, queue, err := c.setup()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
		} else {
			c.logger.Debug("consumer started", "queue", queue)
			if err := c.process(ctx, deliveries); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, Queue, error) {
	ch := c.conn.Channel()
	if ch == nil || ch.IsClosed() {
		return nil, "", ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, "", fmt.Errorf("set qos: %w", err)
	}

	queue, err := c.declare(ch)
	if err != nil {
		return nil, "", err
	}

	deliveries, err := ch.Consume(
		string(queue),
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, "", fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, queue, nil
}

func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	d, err := Decode(raw)
	if err != nil {
		c.logger.Error("failed to decode message", "error", err, "body", string(raw.Body))
		_ = raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, d); err != nil {
		c.logger.Error("handler failed",
			"message_id", d.Message.ID,
			"type", d.Message.Type,
			"error", err,
		)
		_ = raw.Nack(false, false)
		return
	}
	_ = raw.Ack(false)
}

// Decode разбирает конверт сообщения.
func Decode(raw amqp.Delivery) (*Delivery, error) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &Delivery{
		Message:    msg,
		RoutingKey: RoutingKey(raw.RoutingKey),
		Raw:        raw,
	}, nil
}

// ParsePayload разбирает payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
