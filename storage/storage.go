// Package storage provides the backends of the valuation engine: in memory,
// a directory of JSONL files, and SQLite.
package storage

import (
	"fmt"
	"strings"

	"github.com/etnz/valuation"
	"github.com/rs/zerolog"
)

// Backend stores portfolios, transactions, securities, quotes and exchange
// rates.
type Backend interface {
	valuation.Store
	valuation.RateRepository
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultSpec is the backend used when none is given.
const DefaultSpec = "file:.valuation"

// Open returns the backend described by spec.
// Examples:
//   - "memory"
//   - "file:/home/me/.valuation" (a directory)
//   - "sqlite:/home/me/valuation.db"
//
// A spec without a backend name is treated as a file directory.
func Open(spec string, log zerolog.Logger) (Backend, error) {
	backend, arg := parseSpec(spec)
	log = log.With().Str("component", "storage").Str("backend", backend).Logger()

	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return OpenFile(arg, log)
	case BackendSQLite:
		return OpenSQLite(arg, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

func parseSpec(spec string) (backend, arg string) {
	if spec == "" {
		spec = DefaultSpec
	}
	if !strings.Contains(spec, ":") {
		backend = strings.ToLower(spec)
		switch backend {
		case BackendMemory:
			return backend, ""
		case BackendFile:
			return backend, ".valuation"
		case BackendSQLite:
			return backend, "valuation.db"
		default:
			return BackendFile, spec
		}
	}
	backend, arg, _ = strings.Cut(spec, ":")
	return strings.ToLower(backend), arg
}
