package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/legisync/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeProgress    MessageType = "run.progress"
	MessageTypeRunFinished MessageType = "run.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProgressPayload — событие прогресса одного run.
type ProgressPayload struct {
	RunID   uuid.UUID               `json:"run_id"`
	Entity  string                  `json:"entity"`
	Stage   domain.ProcessingStatus `json:"stage"`
	Percent float64                 `json:"percent"`
	Message string                  `json:"message,omitempty"`
	At      time.Time               `json:"at"`
}

// RunFinishedPayload — итог run.
type RunFinishedPayload struct {
	RunID     uuid.UUID               `json:"run_id"`
	Entity    string                  `json:"entity"`
	Status    domain.ProcessingStatus `json:"status"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Error     string                  `json:"error,omitempty"`
	Duration  time.Duration           `json:"duration"`
}

// NewMessage упаковывает payload в конверт.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// Publisher публикует события в exchange прогресса.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение с ключом routingKey.
// События прогресса не переживают рестарт брокера.
func (p *Publisher) Publish(ctx context.Context, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(ExchangeProgress),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Transient,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", ExchangeProgress, routingKey, err)
		}

		p.logger.Debug("published message",
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishProgress публикует событие прогресса.
func (p *Publisher) PublishProgress(ctx context.Context, ev ProgressPayload) error {
	msg, err := NewMessage(MessageTypeProgress, ev)
	if err != nil {
		return err
	}
	return p.Publish(ctx, RoutingKeyFor(ev.Entity, string(ev.Stage)), msg)
}

// PublishRunFinished публикует итог run.
func (p *Publisher) PublishRunFinished(ctx context.Context, report domain.RunReport) error {
	payload := RunFinishedPayload{
		RunID:    report.ID,
		Entity:   report.Entity,
		Status:   report.Status,
		Error:    report.Error,
		Duration: report.Duration(),
	}
	if report.Result != nil {
		payload.Succeeded = report.Result.Succeeded
		payload.Failed = report.Result.Failed
	}

	msg, err := NewMessage(MessageTypeRunFinished, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, RoutingKeyFor(report.Entity, string(report.Status)), msg)
}
