package domain

import "time"

// ProgressEvent — событие прогресса run.
//
// Percent — общий прогресс run в диапазоне 0..100, монотонно не убывает.
type ProgressEvent struct {
	Stage   ProcessingStatus `json:"stage"`
	Percent float64          `json:"percent"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// StageRange — поддиапазон общего прогресса, принадлежащий состоянию.
type StageRange struct {
	From float64
	To   float64
}

// stageRanges — непересекающиеся поддиапазоны стадий.
var stageRanges = map[ProcessingStatus]StageRange{
	StatusInitializing: {0, 0},
	StatusValidating:   {0, 10},
	StatusExtracting:   {10, 50},
	StatusTransforming: {50, 60},
	StatusLoading:      {60, 100},
	StatusDone:         {100, 100},
}

// RangeOf возвращает поддиапазон стадии.
// Для FAILED диапазон пустой: прогресс остаётся на последнем значении.
func RangeOf(s ProcessingStatus) (StageRange, bool) {
	r, ok := stageRanges[s]
	return r, ok
}

// Scale переводит долю внутри стадии (0..1) в общий процент.
func (r StageRange) Scale(fraction float64) float64 {
	fraction = min(max(fraction, 0), 1)
	return r.From + (r.To-r.From)*fraction
}
