package store

import "github.com/cockroachdb/errors"

// Ошибки хранилища.
var (
	// ErrInvalidPath — путь документа не вида collection/doc[/collection/doc...].
	ErrInvalidPath = errors.New("invalid document path")

	// ErrBatchFull — попытка добавить документ в заполненный batch.
	// Ошибка программиста: вызывающий код обязан вызвать CommitAndReset.
	ErrBatchFull = errors.New("batch is full")

	// ErrUnknownDestination — неизвестный тип хранилища.
	ErrUnknownDestination = errors.New("unknown destination")

	// ErrEmulatorHostMissing — destination emulator без LEGISYNC_STORE_EMULATOR_HOST.
	ErrEmulatorHostMissing = errors.New(EmulatorHostEnv + " is not set")

	// ErrOutputDirMissing — destination local-file без output_dir.
	ErrOutputDirMissing = errors.New("output directory is not set")

	// ErrUnknownFormat — неподдерживаемый формат файлового экспорта.
	ErrUnknownFormat = errors.New("unknown file format")
)
