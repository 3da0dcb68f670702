package source

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToList нормализует поле «может быть массивом».
//
//	nil          → []
//	[]any        → как есть
//	любое другое → [v]
func ToList(v any) []any {
	switch t := v.(type) {
	case nil:
		return []any{}
	case []any:
		return t
	default:
		return []any{t}
	}
}

// Dig проходит по вложенным объектам по ключам.
// Возвращает nil, если какой-то ключ отсутствует или значение не объект.
func Dig(v any, keys ...string) any {
	cur := v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

// DigList — Dig + ToList.
func DigList(v any, keys ...string) []any {
	return ToList(Dig(v, keys...))
}

// Selector — путь до значения внутри ответа, ключи через точку
// ("ListaColegiados.Colegiados.Colegiado").
type Selector string

// Keys возвращает ключи селектора.
func (s Selector) Keys() []string {
	if s == "" {
		return nil
	}
	return strings.Split(string(s), ".")
}

// Get применяет селектор к v.
func (s Selector) Get(v any) any {
	return Dig(v, s.Keys()...)
}

// List применяет селектор и нормализует результат в список.
func (s Selector) List(v any) []any {
	return ToList(s.Get(v))
}

// String приводит скалярное значение к строке.
// XML-конвертация отдаёт числа то строкой, то числом.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// StringAt — String(Dig(v, keys...)).
func StringAt(v any, keys ...string) string {
	return String(Dig(v, keys...))
}

// Object приводит значение к объекту; для не-объекта возвращает nil.
func Object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
