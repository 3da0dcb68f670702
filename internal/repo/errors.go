package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — документ не найден в БД.
	ErrNotFound = errors.New("not found")

	// ErrEmptyBatch — commit вызван без документов.
	ErrEmptyBatch = errors.New("empty batch")
)
