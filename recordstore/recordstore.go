// Package recordstore provides the file-backed stores that persist issued
// codes.
package recordstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sarchlab/doccode/codes"
)

// Store is a codes.Store that holds resources until closed.
type Store interface {
	codes.Store

	Close() error
}

// ErrUnknownFormat is returned by Open for unsupported file extensions.
var ErrUnknownFormat = errors.New("unknown record file format")

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// Open picks the store by the extension of path. ".csv" files use the CSV
// store and ".sqlite3", ".sqlite" and ".db" files use the SQLite store.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVStore(path), nil
	case ".sqlite3", ".sqlite", ".db":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}
