package domain

// ProcessingStatus — состояние одного запуска pipeline.
//
// Жизненный цикл:
//
//	INITIALIZING → VALIDATING → EXTRACTING → TRANSFORMING → LOADING → DONE
//	          ↘ FAILED (из любого нетерминального состояния)
type ProcessingStatus string

const (
	// StatusInitializing — run создан, стадии ещё не запускались.
	StatusInitializing ProcessingStatus = "INITIALIZING"

	// StatusValidating — проверка конфигурации.
	StatusValidating ProcessingStatus = "VALIDATING"

	// StatusExtracting — выгрузка записей из внешнего API.
	StatusExtracting ProcessingStatus = "EXTRACTING"

	// StatusTransforming — нормализация записей в памяти.
	StatusTransforming ProcessingStatus = "TRANSFORMING"

	// StatusLoading — запись документов в хранилище.
	StatusLoading ProcessingStatus = "LOADING"

	// StatusDone — run успешно завершён.
	StatusDone ProcessingStatus = "DONE"

	// StatusFailed — run прерван фатальной ошибкой.
	StatusFailed ProcessingStatus = "FAILED"
)

// nextStatus — единственный допустимый «прямой» переход из каждого состояния.
var nextStatus = map[ProcessingStatus]ProcessingStatus{
	StatusInitializing: StatusValidating,
	StatusValidating:   StatusExtracting,
	StatusExtracting:   StatusTransforming,
	StatusTransforming: StatusLoading,
	StatusLoading:      StatusDone,
}

// IsTerminal возвращает true, если статус финальный.
func (s ProcessingStatus) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s → to.
// FAILED достижим из любого нетерминального состояния.
func (s ProcessingStatus) CanTransitionTo(to ProcessingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return nextStatus[s] == to
}

// String возвращает строковое представление ProcessingStatus.
func (s ProcessingStatus) String() string {
	return string(s)
}

// Destination — куда run пишет документы.
type Destination string

const (
	// DestinationLocalFile — экспорт в файлы на локальном диске.
	DestinationLocalFile Destination = "local-file"

	// DestinationEmulator — локальный эмулятор хранилища.
	// Требует LEGISYNC_STORE_EMULATOR_HOST до создания клиента.
	DestinationEmulator Destination = "emulator"

	// DestinationLiveStore — боевое хранилище.
	DestinationLiveStore Destination = "live-store"
)

// ParseDestination парсит строку в Destination.
// Второе значение false, если строка не соответствует ни одному варианту.
func ParseDestination(s string) (Destination, bool) {
	switch Destination(s) {
	case DestinationLocalFile, DestinationEmulator, DestinationLiveStore:
		return Destination(s), true
	default:
		return "", false
	}
}

// DetailStatus — итог обработки одного документа на стадии load.
type DetailStatus string

const (
	DetailSucceeded DetailStatus = "succeeded"
	DetailFailed    DetailStatus = "failed"
	DetailSkipped   DetailStatus = "skipped"
)
