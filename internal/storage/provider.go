// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/notegraph/internal/models"

// Provider is the interface for vault file operations. Paths are
// slash-separated and relative to the vault root.
type Provider interface {
	// List returns checksum metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Listing returns every note, attachment image and folder in the vault.
	Listing() (models.Listing, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath. It fails with apperr.ErrAlreadyExists
	// when newPath is taken.
	Move(oldPath, newPath string) error
	// Stat describes the file at path.
	Stat(path string) (models.FileInfo, error)
	// Exists reports whether a file or folder exists at path.
	Exists(path string) bool

	CreateFolder(path string) error
	MoveFolder(oldPath, newPath string) error
	DeleteFolder(path string) error

	// Resolve returns the absolute file-system path for path, rejecting
	// anything outside the vault.
	Resolve(path string) (string, error)
}

var _ Provider = (*FS)(nil)
