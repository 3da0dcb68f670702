// Package mq рассылает события прогресса через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с брокером (reconnect, graceful shutdown)
//   - topology.go   — exchange прогресса и временные очереди наблюдателей
//   - publisher.go  — публикация событий
//   - consumer.go   — чтение событий (legisync watch)
//   - sink.go       — обработчик для pipeline.Progress.Attach
//
// Типы сообщений:
//   - run.progress — событие прогресса run
//   - run.finished — итог run
//
// Exchange legisync.progress (topic), ключ <entity>.<stage>.
package mq
