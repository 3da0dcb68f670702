package domain

import "fmt"

// ValidationResult — результат проверки конфигурации перед run.
//
// Непустой Errors фатален: run завершается до выгрузки.
// Warnings только логируются.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidationResult возвращает валидный результат без замечаний.
func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// AddError добавляет ошибку и помечает результат невалидным.
func (v *ValidationResult) AddError(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
	v.Valid = false
}

// AddWarning добавляет предупреждение.
func (v *ValidationResult) AddWarning(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Merge объединяет замечания other с текущим результатом.
func (v *ValidationResult) Merge(other ValidationResult) {
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
	v.Valid = len(v.Errors) == 0
}

// HasErrors возвращает true, если есть хотя бы одна ошибка.
func (v ValidationResult) HasErrors() bool {
	return len(v.Errors) > 0
}
