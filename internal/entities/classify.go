package entities

import (
	"strings"
)

// CommitteeKind — класс комиссии.
type CommitteeKind string

const (
	CommitteePermanent CommitteeKind = "permanent"
	CommitteeTemporary CommitteeKind = "temporary"
	CommitteeInquiry   CommitteeKind = "inquiry"
	CommitteeJoint     CommitteeKind = "joint"
	CommitteeOther     CommitteeKind = "other"
)

// CommitteeInfo — поля комиссии, по которым определяется класс.
type CommitteeInfo struct {
	TypeAbbreviation string
	TypeDescription  string
	Abbreviation     string
	Name             string
}

// typeAbbreviations — явные типы колегиального органа.
var typeAbbreviations = map[string]CommitteeKind{
	"CP":    CommitteePermanent,
	"CT":    CommitteeTemporary,
	"CE":    CommitteeTemporary,
	"CEXT":  CommitteeTemporary,
	"CPI":   CommitteeInquiry,
	"CPMI":  CommitteeInquiry,
	"CM":    CommitteeJoint,
	"CMIST": CommitteeJoint,
}

// abbreviationPrefixes — префиксы сиглы. Проверяются по порядку,
// длинные раньше коротких.
var abbreviationPrefixes = []struct {
	prefix string
	kind   CommitteeKind
}{
	{"CPMI", CommitteeInquiry},
	{"CPI", CommitteeInquiry},
	{"CMMPV", CommitteeJoint},
	{"MPV", CommitteeJoint},
	{"CMO", CommitteeJoint},
}

// nameKeywords — ключевые слова в названии. Проверяются по порядку.
var nameKeywords = []struct {
	keyword string
	kind    CommitteeKind
}{
	{"inquerito", CommitteeInquiry},
	{"mista", CommitteeJoint},
	{"congresso nacional", CommitteeJoint},
	{"temporaria", CommitteeTemporary},
	{"especial", CommitteeTemporary},
	{"externa", CommitteeTemporary},
	{"permanente", CommitteePermanent},
}

// ClassifyCommittee определяет класс комиссии.
//
// Порядок правил:
//  1. явный тип (сигла типа, затем ключевые слова в описании типа);
//  2. префикс сиглы комиссии;
//  3. ключевые слова в названии;
//  4. CommitteeOther.
//
// Первое сработавшее правило определяет результат.
func ClassifyCommittee(c CommitteeInfo) CommitteeKind {
	if kind, ok := typeAbbreviations[strings.ToUpper(strings.TrimSpace(c.TypeAbbreviation))]; ok {
		return kind
	}
	if kind, ok := matchKeywords(c.TypeDescription); ok {
		return kind
	}

	abbr := strings.ToUpper(strings.TrimSpace(c.Abbreviation))
	for _, p := range abbreviationPrefixes {
		if strings.HasPrefix(abbr, p.prefix) {
			return p.kind
		}
	}

	if kind, ok := matchKeywords(c.Name); ok {
		return kind
	}

	return CommitteeOther
}

func matchKeywords(s string) (CommitteeKind, bool) {
	if s == "" {
		return "", false
	}
	normalized := fold(s)
	for _, k := range nameKeywords {
		if strings.Contains(normalized, k.keyword) {
			return k.kind, true
		}
	}
	return "", false
}

// accents — замены для диакритики португальского.
var accents = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// fold приводит строку к нижнему регистру без диакритики.
func fold(s string) string {
	return accents.Replace(strings.ToLower(s))
}
