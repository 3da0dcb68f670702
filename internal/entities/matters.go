package entities

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

// firstMatterYear — самый ранний год в поиске законопроектов.
const firstMatterYear = 1946

// Matters — законопроекты за год: matters/{code}.
func Matters() Spec {
	return Spec{
		Name:        "matters",
		Description: "bills and other matters filed in the selected year",
		Collection:  "matters",
		List: ListSpec{
			Path:     "/materia/pesquisa/lista",
			Query:    yearQuery,
			Selector: "PesquisaBasicaMateria.Materias.Materia",
			Key:      matterCode,
		},
		Detail: &DetailSpec{
			Path:     "/materia/{codigo}",
			KeyParam: "codigo",
			Selector: "DetalheMateria.Materia",
		},
		Transform: transformMatter,
		Validate:  validateMatters,
	}
}

func matterYear(cfg config.RunConfig) int {
	if cfg.Year > 0 {
		return cfg.Year
	}
	return time.Now().Year()
}

func yearQuery(cfg config.RunConfig) map[string]string {
	return map[string]string{"ano": strconv.Itoa(matterYear(cfg))}
}

func matterCode(item map[string]any) string {
	if code := source.StringAt(item, "Codigo"); code != "" {
		return code
	}
	return source.StringAt(item, "IdentificacaoMateria", "CodigoMateria")
}

func validateMatters(cfg config.RunConfig) domain.ValidationResult {
	v := domain.NewValidationResult()
	if cfg.Year < 0 {
		v.AddError("year must not be negative")
	} else if cfg.Year > 0 && (cfg.Year < firstMatterYear || cfg.Year > time.Now().Year()) {
		v.AddError("year %d is outside %d..%d", cfg.Year, firstMatterYear, time.Now().Year())
	}
	return v
}

func transformMatter(item Item) ([]store.Document, error) {
	detail := source.Object(item.Detail)
	if detail == nil {
		return nil, fmt.Errorf("%w: matter %s has no detail", ErrMissingField, item.Key)
	}

	ident := source.Object(source.Dig(detail, "IdentificacaoMateria"))
	if ident == nil {
		ident = source.Object(source.Dig(item.Summary, "IdentificacaoMateria"))
	}
	basic := source.Dig(detail, "DadosBasicosMateria")

	ementa := source.StringAt(basic, "EmentaMateria")
	if ementa == "" {
		ementa = source.StringAt(item.Summary, "Ementa")
	}

	doc := map[string]any{
		"code":         item.Key,
		"kind":         source.StringAt(ident, "SiglaSubtipoMateria"),
		"kind_name":    source.StringAt(ident, "DescricaoSubtipoMateria"),
		"number":       source.StringAt(ident, "NumeroMateria"),
		"year":         source.StringAt(ident, "AnoMateria"),
		"label":        matterLabel(ident),
		"summary":      ementa,
		"explanation":  source.StringAt(basic, "ExplicacaoEmentaMateria"),
		"filed_on":     source.StringAt(basic, "DataApresentacao"),
		"in_progress":  source.StringAt(ident, "IndicadorTramitando") == "Sim",
		"author":       source.StringAt(detail, "Autoria", "Autor", "NomeAutor"),
		"house":        source.StringAt(ident, "SiglaCasaIdentificacaoMateria"),
		"requested_by": source.StringAt(item.Summary, "Autor"),
	}

	return []store.Document{{Path: "matters/" + item.Key, Payload: doc}}, nil
}
