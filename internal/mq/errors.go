package mq

import "errors"

var (
	// ErrNoChannel — соединение не установлено или канал закрыт.
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrDeliveriesClosed — брокер закрыл поток доставки.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")
)
