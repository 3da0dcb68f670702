package domain

// Stage — стадия pipeline, для которой ведутся счётчики.
type Stage string

const (
	StageExtraction     Stage = "extraction"
	StageTransformation Stage = "transformation"
	StageLoad           Stage = "load"
)

// StageCounter — счётчики одной стадии.
type StageCounter struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Update прибавляет значения к счётчикам. Отрицательные значения игнорируются:
// счётчики только растут.
func (c *StageCounter) Update(total, succeeded, failed int) {
	c.Total += max(total, 0)
	c.Succeeded += max(succeeded, 0)
	c.Failed += max(failed, 0)
}

// StageStats — счётчики всех стадий одного run.
//
// Принадлежит ровно одному run и меняется только им,
// поэтому синхронизация не нужна.
type StageStats struct {
	Extraction     StageCounter `json:"extraction"`
	Transformation StageCounter `json:"transformation"`
	Load           StageCounter `json:"load"`

	// Warnings — нефатальные проблемы (например, отброшенные при transform записи).
	Warnings int `json:"warnings"`

	// Errors — ошибки, учтённые без прерывания run.
	Errors int `json:"errors"`
}

// Counter возвращает счётчик стадии. Для неизвестной стадии — nil.
func (s *StageStats) Counter(stage Stage) *StageCounter {
	switch stage {
	case StageExtraction:
		return &s.Extraction
	case StageTransformation:
		return &s.Transformation
	case StageLoad:
		return &s.Load
	default:
		return nil
	}
}

// Update обновляет счётчик стадии.
func (s *StageStats) Update(stage Stage, total, succeeded, failed int) {
	if c := s.Counter(stage); c != nil {
		c.Update(total, succeeded, failed)
	}
}

// AddWarning увеличивает счётчик предупреждений.
func (s *StageStats) AddWarning() {
	s.Warnings++
}

// AddError увеличивает счётчик ошибок.
func (s *StageStats) AddError() {
	s.Errors++
}
