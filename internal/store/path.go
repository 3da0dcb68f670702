package store

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Address — адрес документа: путь коллекции и идентификатор.
type Address struct {
	// CollectionPath — путь коллекции с нечётным числом сегментов
	// ("senators", "senators/5012/votes").
	CollectionPath string

	// DocumentID — идентификатор документа внутри коллекции.
	DocumentID string
}

// String возвращает полный путь документа.
func (a Address) String() string {
	return a.CollectionPath + "/" + a.DocumentID
}

// ParsePath разбирает путь документа "collection/doc[/collection/doc...]".
//
// Число сегментов должно быть чётным, пустые сегменты запрещены.
// Последний сегмент — DocumentID, остальные — CollectionPath.
func ParsePath(path string) (Address, error) {
	segments := strings.Split(path, "/")
	if err := checkSegments(path, segments); err != nil {
		return Address{}, err
	}
	if len(segments)%2 != 0 {
		return Address{}, invalidPath(path, "document path must have an even number of segments, got %d", len(segments))
	}

	last := len(segments) - 1
	return Address{
		CollectionPath: strings.Join(segments[:last], "/"),
		DocumentID:     segments[last],
	}, nil
}

// NewAddress проверяет пару коллекция + ID и собирает Address.
func NewAddress(collectionPath, documentID string) (Address, error) {
	segments := strings.Split(collectionPath, "/")
	if err := checkSegments(collectionPath, segments); err != nil {
		return Address{}, err
	}
	if len(segments)%2 != 1 {
		return Address{}, invalidPath(collectionPath, "collection path must have an odd number of segments, got %d", len(segments))
	}
	if documentID == "" || strings.Contains(documentID, "/") {
		return Address{}, invalidPath(collectionPath+"/"+documentID, "document id %q must be a single non-empty segment", documentID)
	}

	return Address{CollectionPath: collectionPath, DocumentID: documentID}, nil
}

func checkSegments(path string, segments []string) error {
	for i, s := range segments {
		if s == "" {
			return invalidPath(path, "empty segment at position %d", i)
		}
	}
	return nil
}

func invalidPath(path, format string, args ...any) error {
	err := errors.Wrapf(ErrInvalidPath, "%q: "+format, append([]any{path}, args...)...)
	return errors.WithHint(err, "use collection/doc[/collection/doc...]")
}
