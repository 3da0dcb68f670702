package entities

import "errors"

// Ошибки адаптеров.
var (
	// ErrUnknownEntity — тип сущности не зарегистрирован.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrMissingField — в записи нет обязательного поля.
	ErrMissingField = errors.New("missing required field")
)
