package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/legisync/internal/domain"
	"github.com/shaiso/legisync/internal/repo"
)

// Options — параметры выбора хранилища.
type Options struct {
	Destination domain.Destination

	// DryRun — писать в память вместо Destination.
	DryRun bool

	// OutputDir и Format — для local-file.
	OutputDir string
	Format    string

	// DBURL — для live-store (пусто — DB_URL из окружения).
	DBURL string
}

// Open создаёт Backend по Options.
//
// Для emulator переменная EmulatorHostEnv проверяется до создания клиента.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.DryRun {
		logger.Info("dry run: documents are kept in memory", "destination", opts.Destination)
		return NewMemoryBackend(), nil
	}

	switch opts.Destination {
	case domain.DestinationLocalFile:
		b, err := NewFileBackend(opts.OutputDir, opts.Format)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", "destination", opts.Destination, "dir", b.Dir(), "format", b.format)
		return b, nil

	case domain.DestinationEmulator:
		b, err := OpenSQLite(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("store opened", "destination", opts.Destination, "path", b.Path())
		return b, nil

	case domain.DestinationLiveStore:
		pool, err := repo.NewPool(ctx, opts.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect live store: %w", err)
		}
		docs := repo.NewDocumentRepo(pool)
		if err := docs.EnsureSchema(ctx); err != nil {
			docs.Close()
			return nil, err
		}
		logger.Info("store opened", "destination", opts.Destination)
		return NewPostgresBackend(docs), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDestination, opts.Destination)
	}
}
