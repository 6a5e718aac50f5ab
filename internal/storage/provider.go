// Package storage defines the dump-directory file-system abstraction.
package storage

import (
	"io"

	"github.com/starford/wikimapper/internal/models"
)

// Provider is the interface for operations on the sources directory.
// All paths are relative to the sources root.
type Provider interface {
	// Sources returns the immediate subdirectories of the root.
	Sources() ([]models.Source, error)
	// Files returns the names of the regular files directly inside source.
	Files(source string) ([]string, error)
	// Open opens the file at path for streaming reads.
	Open(path string) (io.ReadCloser, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
}
