package domain

// BatchResult — итоговый отчёт стадии load и всего run.
type BatchResult struct {
	// Total — сколько документов было передано на запись.
	Total int `json:"total"`

	// Processed — сколько документов дошло до commit (успешного или нет).
	Processed int `json:"processed"`

	// Succeeded — сколько документов закоммичено.
	Succeeded int `json:"succeeded"`

	// Failed — сколько документов не записано из-за ошибки commit.
	Failed int `json:"failed"`

	// Details — результат по каждому документу.
	Details []BatchDetail `json:"details"`
}

// BatchDetail — результат записи одного документа.
type BatchDetail struct {
	ID     string       `json:"id"`
	Status DetailStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
	Chunk  int          `json:"chunk"`
}

// NewBatchResult создаёт пустой отчёт на total документов.
func NewBatchResult(total int) *BatchResult {
	return &BatchResult{
		Total:   total,
		Details: make([]BatchDetail, 0, total),
	}
}

// RecordSucceeded отмечает успешно записанные документы одного chunk.
func (r *BatchResult) RecordSucceeded(chunk int, ids []string) {
	for _, id := range ids {
		r.Details = append(r.Details, BatchDetail{ID: id, Status: DetailSucceeded, Chunk: chunk})
	}
	r.Processed += len(ids)
	r.Succeeded += len(ids)
}

// RecordFailed отмечает документы chunk, commit которого завершился ошибкой.
func (r *BatchResult) RecordFailed(chunk int, ids []string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	for _, id := range ids {
		r.Details = append(r.Details, BatchDetail{ID: id, Status: DetailFailed, Error: msg, Chunk: chunk})
	}
	r.Processed += len(ids)
	r.Failed += len(ids)
}

// RecordSkipped отмечает документы, до которых запись не дошла.
// Processed не увеличивается.
func (r *BatchResult) RecordSkipped(ids []string) {
	for _, id := range ids {
		r.Details = append(r.Details, BatchDetail{ID: id, Status: DetailSkipped, Chunk: -1})
	}
}

// FailedChunk возвращает номер первого chunk с ошибкой или -1.
func (r *BatchResult) FailedChunk() int {
	for _, d := range r.Details {
		if d.Status == DetailFailed {
			return d.Chunk
		}
	}
	return -1
}
