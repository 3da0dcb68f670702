// Package entities — адаптеры типов сущностей законодательного API.
//
// Каждый тип описывается декларативным Spec (откуда брать список, как
// получить ключ, нужна ли детальная карточка, как построить документы).
// Adapter превращает Spec в pipeline.Processor.
package entities

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/legisync/internal/config"
	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/fetcher"
	"github.com/shaiso/legisync/internal/pipeline"
	"github.com/shaiso/legisync/internal/retry"
	"github.com/shaiso/legisync/internal/source"
	"github.com/shaiso/legisync/internal/store"
)

// Getter — часть source.Client, нужная адаптеру.
type Getter interface {
	Get(ctx context.Context, pathTemplate string, params, query map[string]string) (map[string]any, error)
}

// Item — одна выгруженная запись.
type Item struct {
	// Key — идентификатор записи в источнике.
	Key string

	// Summary — элемент списка.
	Summary map[string]any

	// Detail — детальная карточка (nil для сущностей без детализации).
	Detail any
}

// Extracted — результат стадии extract.
type Extracted struct {
	Items []Item
}

// Transformed — результат стадии transform.
type Transformed struct {
	Documents []store.Document
}

// ListSpec — откуда брать список записей.
type ListSpec struct {
	// Path — шаблон пути ("/senador/lista/legislatura/{legislatura}").
	Path string

	// Params и Query строят параметры запроса из конфигурации.
	Params func(cfg config.RunConfig) map[string]string
	Query  func(cfg config.RunConfig) map[string]string

	// Selector — путь до элементов списка в ответе.
	Selector source.Selector

	// Key извлекает идентификатор элемента; пустая строка — элемент пропускается.
	Key func(item map[string]any) string
}

// DetailSpec — откуда брать детальную карточку записи.
type DetailSpec struct {
	// Path — шаблон пути с параметром ключа ("/senador/{codigo}").
	Path string

	// KeyParam — имя параметра, в который подставляется Item.Key.
	KeyParam string

	// Query строит строку запроса из конфигурации.
	Query func(cfg config.RunConfig) map[string]string

	// Selector — путь до карточки в ответе. Пустой — весь ответ.
	Selector source.Selector
}

// Spec — декларативное описание типа сущности.
type Spec struct {
	// Name — имя сущности в CLI и отчётах.
	Name string

	// Description — для `legisync entities`.
	Description string

	// Collection — корневая коллекция документов.
	Collection string

	List ListSpec

	// Detail — nil для сущностей, которые полностью описываются списком.
	Detail *DetailSpec

	// Transform строит документы из одной записи (1:N).
	Transform func(item Item) ([]store.Document, error)

	// Validate — дополнительные проверки конфигурации (может быть nil).
	Validate func(cfg config.RunConfig) domain.ValidationResult
}

// Adapter реализует pipeline.Processor для одного Spec.
type Adapter struct {
	spec   Spec
	source Getter
}

var _ pipeline.Processor[Extracted, Transformed] = (*Adapter)(nil)

// NewAdapter создаёт Adapter.
func NewAdapter(spec Spec, src Getter) *Adapter {
	return &Adapter{spec: spec, source: src}
}

// Spec возвращает описание сущности.
func (a *Adapter) Spec() Spec {
	return a.spec
}

func (a *Adapter) Name() string {
	return a.spec.Name
}

// Validate проверяет параметры сущности.
func (a *Adapter) Validate(_ context.Context, run *pipeline.Run) domain.ValidationResult {
	if a.spec.Validate == nil {
		return domain.NewValidationResult()
	}
	return a.spec.Validate(run.Config)
}

// Extract выгружает список и, если нужно, детальные карточки.
//
// Ошибка списка фатальна. Ошибки отдельных карточек учитываются в
// Stats.Extraction.Failed; run падает, только если не выгружено ни одной записи.
func (a *Adapter) Extract(ctx context.Context, run *pipeline.Run) (Extracted, error) {
	cfg := run.Config
	policy := a.policy(run)

	list := a.spec.List
	label := "list " + a.spec.Name
	payload, err := retry.Do(ctx, policy, label, func(ctx context.Context) (map[string]any, error) {
		return a.source.Get(ctx, list.Path, call(list.Params, cfg), call(list.Query, cfg))
	})
	if err != nil {
		run.Stats.AddError()
		return Extracted{}, fmt.Errorf("%w: %w", pipeline.ErrNoItems, pipeline.TransientFetchError(err, label))
	}

	summaries := a.listItems(run, list.Selector.List(payload))
	if cfg.Limit > 0 && len(summaries) > cfg.Limit {
		summaries = summaries[:cfg.Limit]
	}
	if len(summaries) == 0 {
		return Extracted{}, fmt.Errorf("%w: %s list is empty", pipeline.ErrNoItems, a.spec.Name)
	}
	run.ReportProgress(0.05, fmt.Sprintf("listed %d %s", len(summaries), a.spec.Name))

	if a.spec.Detail == nil {
		run.Stats.Update(domain.StageExtraction, len(summaries), len(summaries), 0)
		run.ReportProgress(1, fmt.Sprintf("extracted %d %s", len(summaries), a.spec.Name))
		return Extracted{Items: summaries}, nil
	}

	return a.fetchDetails(ctx, run, policy, summaries)
}

// fetchDetails выгружает карточки окнами через fetcher.
func (a *Adapter) fetchDetails(ctx context.Context, run *pipeline.Run, policy retry.Policy, summaries []Item) (Extracted, error) {
	cfg := run.Config
	detail := a.spec.Detail

	bySummary := make(map[string]map[string]any, len(summaries))
	keys := make([]string, len(summaries))
	for i, s := range summaries {
		keys[i] = s.Key
		bySummary[s.Key] = s.Summary
	}

	f := fetcher.New(fetcher.Config{
		Concurrency:       cfg.Concurrency,
		Pacing:            cfg.PacingDelay,
		Retry:             policy,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            run.Logger,
		OnChunk: func(info fetcher.ChunkInfo) {
			run.Metrics.ObserveChunk(run.Entity, info.Duration)
			run.ReportProgress(0.05+0.95*float64(info.Done)/float64(info.Total),
				fmt.Sprintf("fetched %d/%d %s", info.Done, info.Total, a.spec.Name))
		},
	})

	query := call(detail.Query, cfg)
	results, err := fetcher.Fetch(ctx, f, fetcher.Items(keys), func(ctx context.Context, key string) (any, error) {
		payload, err := a.source.Get(ctx, detail.Path, map[string]string{detail.KeyParam: key}, query)
		if err != nil {
			return nil, err
		}
		if detail.Selector == "" {
			return payload, nil
		}
		return detail.Selector.Get(payload), nil
	})
	if err != nil {
		return Extracted{}, err
	}

	out := Extracted{Items: make([]Item, 0, len(results))}
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			run.Stats.AddError()
			run.Logger.Warn("item extraction failed",
				"key", r.Item.Key,
				"attempts", r.Attempts,
				"error", pipeline.TransientFetchError(r.Err, "detail "+r.Item.Key),
			)
			continue
		}
		out.Items = append(out.Items, Item{
			Key:     r.Item.Key,
			Summary: bySummary[r.Item.Key],
			Detail:  r.Value,
		})
	}

	run.Stats.Update(domain.StageExtraction, len(results), len(out.Items), failed)

	if len(out.Items) == 0 {
		return Extracted{}, fmt.Errorf("%w: all %d %s failed", pipeline.ErrNoItems, len(results), a.spec.Name)
	}
	return out, nil
}

// Transform строит документы. Ошибка или panic одной записи
// отбрасывает только её.
func (a *Adapter) Transform(run *pipeline.Run, in Extracted) (Transformed, error) {
	out := Transformed{Documents: make([]store.Document, 0, len(in.Items))}

	for i, item := range in.Items {
		docs, err := a.transformOne(item)
		if err != nil {
			run.Stats.Update(domain.StageTransformation, 1, 0, 1)
			run.Stats.AddWarning()
			run.Logger.Warn("item dropped", "key", item.Key, "error", err)
			continue
		}
		run.Stats.Update(domain.StageTransformation, 1, 1, 0)
		out.Documents = append(out.Documents, docs...)

		if (i+1)%100 == 0 {
			run.ReportProgress(float64(i+1)/float64(len(in.Items)), "transforming")
		}
	}

	return out, nil
}

func (a *Adapter) transformOne(item Item) (docs []store.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pipeline.TransformError(fmt.Errorf("panic: %v", r), item.Key)
		}
	}()

	docs, err = a.spec.Transform(item)
	if err != nil {
		return nil, pipeline.TransformError(err, item.Key)
	}
	return docs, nil
}

// Load пишет документы через run.Writer.
func (a *Adapter) Load(ctx context.Context, run *pipeline.Run, in Transformed) (*domain.BatchResult, error) {
	return pipeline.LoadDocuments(ctx, run, in.Documents)
}

// listItems извлекает ключи и убирает повторы.
func (a *Adapter) listItems(run *pipeline.Run, raw []any) []Item {
	items := make([]Item, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		summary := source.Object(r)
		key := ""
		if summary != nil {
			key = a.spec.List.Key(summary)
		}
		if key == "" {
			run.Stats.AddWarning()
			run.Logger.Warn("list item without key skipped")
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, Item{Key: key, Summary: summary})
	}
	return items
}

// policy — политика повторов run с учётом метрик.
func (a *Adapter) policy(run *pipeline.Run) retry.Policy {
	p := run.Config.RetryPolicy()
	p.OnRetry = func(int, error, time.Duration) {
		run.Metrics.IncRetry(run.Entity)
	}
	return p
}

func call(fn func(config.RunConfig) map[string]string, cfg config.RunConfig) map[string]string {
	if fn == nil {
		return nil
	}
	return fn(cfg)
}
