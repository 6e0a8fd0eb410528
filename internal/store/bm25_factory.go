package store

import (
	"fmt"
)

// Backend represents the lexical index backend type.
type Backend string

const (
	// BackendSQLite uses SQLite FTS5 (default).
	BackendSQLite Backend = "sqlite"

	// BackendBleve uses Bleve v2.
	BackendBleve Backend = "bleve"
)

// ValidBackends lists accepted backend names.
var ValidBackends = []Backend{BackendSQLite, BackendBleve}

// ParseBackend validates a backend name. Empty selects the default.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case BackendSQLite, "":
		return BackendSQLite, nil
	case BackendBleve:
		return BackendBleve, nil
	default:
		return "", fmt.Errorf("unknown lexical backend: %s (valid options: sqlite, bleve)", name)
	}
}

// NewLexicalIndex creates an empty lexical index for the configured backend.
func NewLexicalIndex(config LexicalConfig) (LexicalIndex, error) {
	backend, err := ParseBackend(config.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendBleve:
		return NewBleveLexicalIndex(config)
	default:
		return NewSQLiteLexicalIndex(config)
	}
}
