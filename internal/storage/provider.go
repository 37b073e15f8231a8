// Package storage defines the archive file-system abstraction.
package storage

import "github.com/starford/lookback/internal/models"

// Provider is the interface for archive file operations.
type Provider interface {
	// Root returns the absolute archive root.
	Root() string
	// Scan walks the archive and returns every metadata and media file.
	Scan() ([]models.FileEntry, error)
	// Fingerprint summarises the scanned files so unchanged folders can be skipped.
	Fingerprint() (string, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}
