package entities

import (
	"fmt"
	"strconv"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

const senatorsListPath = "/senador/lista/legislatura/{legislatura}"

// senatorsList — список сенаторов легислатуры; общий для senators и votes.
var senatorsList = ListSpec{
	Path:     senatorsListPath,
	Params:   legislatureParams,
	Selector: "ListaParlamentarLegislatura.Parlamentares.Parlamentar",
	Key:      senatorCode,
}

// Senators — профили сенаторов легислатуры: senators/{code}.
func Senators() Spec {
	return Spec{
		Name:        "senators",
		Description: "senator profiles of the selected legislature",
		Collection:  "senators",
		List:        senatorsList,
		Detail: &DetailSpec{
			Path:     "/senador/{codigo}",
			KeyParam: "codigo",
			Selector: "DetalheParlamentar.Parlamentar",
		},
		Transform: transformSenator,
		Validate:  validateLegislature,
	}
}

func legislatureParams(cfg config.RunConfig) map[string]string {
	return map[string]string{"legislatura": strconv.Itoa(cfg.Legislature)}
}

func senatorCode(item map[string]any) string {
	return source.StringAt(item, "IdentificacaoParlamentar", "CodigoParlamentar")
}

func transformSenator(item Item) ([]store.Document, error) {
	detail := source.Object(item.Detail)
	if detail == nil {
		return nil, fmt.Errorf("%w: senator %s has no detail", ErrMissingField, item.Key)
	}

	// Карточка полнее элемента списка, но не всегда содержит идентификацию
	ident := source.Object(source.Dig(detail, "IdentificacaoParlamentar"))
	if ident == nil {
		ident = source.Object(source.Dig(item.Summary, "IdentificacaoParlamentar"))
	}
	name := source.StringAt(ident, "NomeParlamentar")
	if name == "" {
		return nil, fmt.Errorf("%w: senator %s has no name", ErrMissingField, item.Key)
	}

	basic := source.Dig(detail, "DadosBasicosParlamentar")

	var phones []string
	for _, p := range source.DigList(detail, "Telefones", "Telefone") {
		if n := source.StringAt(p, "NumeroTelefone"); n != "" {
			phones = append(phones, n)
		}
	}

	var mandates []map[string]any
	for _, m := range source.DigList(item.Summary, "Mandatos", "Mandato") {
		mandates = append(mandates, map[string]any{
			"code":          source.StringAt(m, "CodigoMandato"),
			"state":         source.StringAt(m, "UfParlamentar"),
			"participation": source.StringAt(m, "DescricaoParticipacao"),
			"first_legislature": source.StringAt(m,
				"PrimeiraLegislaturaDoMandato", "NumeroLegislatura"),
			"second_legislature": source.StringAt(m,
				"SegundaLegislaturaDoMandato", "NumeroLegislatura"),
		})
	}

	doc := map[string]any{
		"code":        item.Key,
		"name":        name,
		"full_name":   source.StringAt(ident, "NomeCompletoParlamentar"),
		"gender":      source.StringAt(ident, "SexoParlamentar"),
		"party":       source.StringAt(ident, "SiglaPartidoParlamentar"),
		"state":       source.StringAt(ident, "UfParlamentar"),
		"email":       source.StringAt(ident, "EmailParlamentar"),
		"photo_url":   source.StringAt(ident, "UrlFotoParlamentar"),
		"page_url":    source.StringAt(ident, "UrlPaginaParlamentar"),
		"birth_date":  source.StringAt(basic, "DataNascimento"),
		"birthplace":  source.StringAt(basic, "Naturalidade"),
		"birth_state": source.StringAt(basic, "UfNaturalidade"),
		"phones":      phones,
		"mandates":    mandates,
	}

	return []store.Document{{Path: "senators/" + item.Key, Payload: doc}}, nil
}

// validateLegislature — общие проверки для сущностей по легислатуре.
func validateLegislature(cfg config.RunConfig) domain.ValidationResult {
	v := domain.NewValidationResult()
	if cfg.Legislature < 1 {
		v.AddError("legislature is required")
	}
	return v
}
