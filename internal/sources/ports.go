package sources

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the ledger directory is unset or unusable.
	ErrNotConfigured = errors.New("ledger directory is not configured or invalid")
	// ErrInvalidName means a source name was rejected before any file access.
	ErrInvalidName = errors.New("invalid source name")
	// ErrNotFound means the named source does not exist.
	ErrNotFound = errors.New("source not found")
)

// Ports for the file-access collaborator. Names reaching a SourceReader are plain
// file names; confinement and extension checks belong to the implementation.
type (
	SourceLister interface {
		// ListSources returns readable source names sorted by name.
		ListSources(ctx context.Context) ([]string, error)
	}

	SourceReader interface {
		// ReadSource returns the raw bytes of one source.
		ReadSource(ctx context.Context, name string) ([]byte, error)
	}

	Store interface {
		SourceLister
		SourceReader
	}
)
