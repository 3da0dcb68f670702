package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/store"
)

// LoadDocuments пишет docs через run.Writer chunk за chunk.
//
// Все пути разбираются до первой записи: невалидный путь — ошибка
// конфигурации, и ничего не пишется. Повторяющиеся пути схлопываются,
// последний payload побеждает.
//
// При ошибке commit документы упавшего chunk помечаются failed,
// ещё не отправленные — skipped, и возвращается CommitError с номером chunk.
// Chunk, закоммиченные до ошибки, остаются в хранилище.
func LoadDocuments(ctx context.Context, run *Run, docs []store.Document) (*domain.BatchResult, error) {
	if run.Writer == nil {
		return nil, MarkConfiguration(errors.New("run has no batch writer"))
	}
	w := run.Writer

	entries, duplicates, err := prepare(docs)
	if err != nil {
		return nil, MarkConfiguration(err)
	}
	if duplicates > 0 {
		run.Stats.AddWarning()
		run.Logger.Warn("duplicate document paths collapsed", "duplicates", duplicates)
	}

	total := len(entries)
	result := domain.NewBatchResult(total)
	run.Stats.Update(domain.StageLoad, total, 0, 0)

	if total == 0 {
		run.Logger.Info("nothing to load")
		run.ReportProgress(1, "nothing to load")
		return result, nil
	}

	destination := w.Backend().Name()
	chunk := 0
	next := 0

	commit := func() error {
		res, err := w.CommitAndReset(ctx)
		run.Metrics.ObserveCommit(run.Entity, destination, res.Committed, err)
		if err != nil {
			result.RecordFailed(chunk, res.IDs, err)
			run.Stats.Update(domain.StageLoad, 0, 0, res.Failed)
			run.Stats.AddError()
			return CommitError(err, chunk)
		}

		result.RecordSucceeded(chunk, res.IDs)
		run.Stats.Update(domain.StageLoad, 0, res.Committed, 0)
		run.Logger.Debug("chunk committed",
			"chunk", chunk,
			"documents", res.Committed,
			"destination", destination,
		)
		chunk++
		run.ReportProgress(float64(result.Processed)/float64(total),
			fmt.Sprintf("committed %d/%d documents", result.Processed, total))
		return nil
	}

	for next < total {
		if w.Full() {
			if err := commit(); err != nil {
				result.RecordSkipped(paths(entries[next:]))
				return result, err
			}
		}
		e := entries[next]
		if err := w.SetAddress(e.Address, e.Payload); err != nil {
			return result, fmt.Errorf("stage %s: %w", e.Address, err)
		}
		next++
	}

	if err := commit(); err != nil {
		return result, err
	}

	run.Metrics.AddItems(run.Entity, string(domain.StageLoad), result.Succeeded, result.Failed)
	return result, nil
}

// prepare разбирает пути и схлопывает повторы с сохранением порядка.
func prepare(docs []store.Document) ([]store.Entry, int, error) {
	entries := make([]store.Entry, 0, len(docs))
	index := make(map[store.Address]int, len(docs))
	duplicates := 0

	for _, d := range docs {
		addr, err := store.ParsePath(d.Path)
		if err != nil {
			return nil, 0, err
		}
		if i, ok := index[addr]; ok {
			entries[i].Payload = d.Payload
			duplicates++
			continue
		}
		index[addr] = len(entries)
		entries = append(entries, store.Entry{Address: addr, Payload: d.Payload})
	}
	return entries, duplicates, nil
}

func paths(entries []store.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.String()
	}
	return ids
}
