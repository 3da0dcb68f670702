package entities

import (
	"fmt"

	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

// Committees — колегиальные органы Сената: committees/{code}.
// Список содержит все поля, карточка не запрашивается.
func Committees() Spec {
	return Spec{
		Name:        "committees",
		Description: "Senate committees with derived kind",
		Collection:  "committees",
		List: ListSpec{
			Path:     "/comissao/lista/colegiados",
			Selector: "ListaColegiados.Colegiados.Colegiado",
			Key: func(item map[string]any) string {
				return source.StringAt(item, "Codigo")
			},
		},
		Transform: transformCommittee,
	}
}

func transformCommittee(item Item) ([]store.Document, error) {
	c := item.Summary
	info := CommitteeInfo{
		TypeAbbreviation: source.StringAt(c, "SiglaTipoColegiado"),
		TypeDescription:  source.StringAt(c, "DescricaoTipoColegiado"),
		Abbreviation:     source.StringAt(c, "Sigla"),
		Name:             source.StringAt(c, "Nome"),
	}
	if info.Name == "" && info.Abbreviation == "" {
		return nil, fmt.Errorf("%w: committee %s has neither name nor abbreviation", ErrMissingField, item.Key)
	}

	end := source.StringAt(c, "DataFim")
	doc := map[string]any{
		"code":              item.Key,
		"abbreviation":      info.Abbreviation,
		"name":              info.Name,
		"purpose":           source.StringAt(c, "Finalidade"),
		"type_abbreviation": info.TypeAbbreviation,
		"type_description":  info.TypeDescription,
		"kind":              string(ClassifyCommittee(info)),
		"house":             source.StringAt(c, "SiglaCasa"),
		"start_date":        source.StringAt(c, "DataInicio"),
		"end_date":          end,
		"active":            end == "",
	}

	return []store.Document{{Path: "committees/" + item.Key, Payload: doc}}, nil
}
