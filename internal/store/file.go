package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Форматы файлового экспорта.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FileBackend пишет каждый документ в отдельный файл:
//
//	<dir>/<collection_path>/<document_id>.<format>
//
// Commit сначала пишет все временные файлы и только затем
// переименовывает их, поэтому ошибка сериализации или записи
// не оставляет на диске частично записанный chunk.
type FileBackend struct {
	dir    string
	format string
}

// NewFileBackend создаёт FileBackend. Пустой format — json.
func NewFileBackend(dir, format string) (*FileBackend, error) {
	if dir == "" {
		return nil, ErrOutputDirMissing
	}
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &FileBackend{dir: dir, format: format}, nil
}

func (f *FileBackend) Name() string { return "local-file" }

func (f *FileBackend) MaxBatchSize() int { return MaxBatchSize }

// Dir возвращает корневой каталог экспорта.
func (f *FileBackend) Dir() string { return f.dir }

// PathFor возвращает путь файла документа.
func (f *FileBackend) PathFor(addr Address) string {
	return filepath.Join(f.dir, filepath.FromSlash(addr.CollectionPath), addr.DocumentID+"."+f.format)
}

// Commit записывает entries.
func (f *FileBackend) Commit(ctx context.Context, entries []Entry) error {
	type staged struct {
		tmp, final string
	}
	pending := make([]staged, 0, len(entries))

	cleanup := func() {
		for _, p := range pending {
			_ = os.Remove(p.tmp)
		}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}

		data, err := f.encode(e.Payload)
		if err != nil {
			cleanup()
			return fmt.Errorf("encode %s: %w", e.Address, err)
		}

		final := f.PathFor(e.Address)
		if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
			cleanup()
			return fmt.Errorf("create dir for %s: %w", e.Address, err)
		}

		tmp, err := os.CreateTemp(filepath.Dir(final), ".tmp-*")
		if err != nil {
			cleanup()
			return fmt.Errorf("create temp for %s: %w", e.Address, err)
		}
		pending = append(pending, staged{tmp: tmp.Name(), final: final})

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			cleanup()
			return fmt.Errorf("write %s: %w", e.Address, err)
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return fmt.Errorf("close %s: %w", e.Address, err)
		}
	}

	for i, p := range pending {
		if err := os.Rename(p.tmp, p.final); err != nil {
			for _, rest := range pending[i:] {
				_ = os.Remove(rest.tmp)
			}
			return fmt.Errorf("rename %s: %w", p.final, err)
		}
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }

// Read читает документ с диска.
func (f *FileBackend) Read(addr Address) (map[string]any, error) {
	data, err := os.ReadFile(f.PathFor(addr))
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if f.format == FormatYAML {
		err = yaml.Unmarshal(data, &payload)
	} else {
		err = json.Unmarshal(data, &payload)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", addr, err)
	}
	return payload, nil
}

func (f *FileBackend) encode(payload map[string]any) ([]byte, error) {
	if f.format == FormatYAML {
		return yaml.Marshal(payload)
	}
	return json.MarshalIndent(payload, "", "  ")
}
