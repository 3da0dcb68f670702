package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeProgress — topic exchange событий прогресса.
// Ключ маршрутизации: <entity>.<stage> (senators.EXTRACTING).
const ExchangeProgress Exchange = "legisync.progress"

// RoutingKeyFor строит ключ события.
func RoutingKeyFor(entity, stage string) RoutingKey {
	return RoutingKey(sanitize(entity) + "." + sanitize(stage))
}

// BindingKey строит шаблон подписки на события сущностей.
// Без сущностей — подписка на всё.
func BindingKey(entity string) RoutingKey {
	if entity == "" {
		return "#"
	}
	return RoutingKey(sanitize(entity) + ".*")
}

// sanitize убирает из сегмента символы, значимые для topic exchange.
func sanitize(s string) string {
	s = strings.NewReplacer(".", "_", "*", "_", "#", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

// SetupTopology объявляет exchange прогресса.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, declareExchange)
}

func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeProgress), // name
		"topic",                  // type
		true,                     // durable
		false,                    // auto-deleted
		false,                    // internal
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeProgress, err)
	}
	return nil
}

// DeclareWatchQueue объявляет временную очередь наблюдателя и привязывает
// её к exchange по каждому ключу. Очередь удаляется вместе с соединением.
func DeclareWatchQueue(ch *amqp.Channel, keys ...RoutingKey) (Queue, error) {
	if err := declareExchange(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // имя выдаст брокер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare watch queue: %w", err)
	}

	if len(keys) == 0 {
		keys = []RoutingKey{BindingKey("")}
	}
	for _, k := range keys {
		if err := ch.QueueBind(q.Name, string(k), string(ExchangeProgress), false, nil); err != nil {
			return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, k, err)
		}
	}

	return Queue(q.Name), nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  legisync broker topology:

    legisync.progress (topic)
    └── amq.gen-* [routing: <entity>.<stage>]
            Consumer: legisync watch (exclusive, auto-delete)
  `
}
