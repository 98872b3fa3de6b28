package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/validate"
)

// CreateFolder creates a folder and any missing parents.
func (s *Service) CreateFolder(_ context.Context, p string) (string, error) {
	clean, err := FolderPath(p)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateFolder(clean); err != nil {
		return "", err
	}
	return clean, nil
}

// MoveFolder moves a folder with its contents and resynchronizes the
// catalog, since every note below it changed path.
func (s *Service) MoveFolder(_ context.Context, oldPath, newPath string) (string, error) {
	target, err := FolderPath(newPath)
	if err != nil {
		return "", err
	}
	if err := s.store.MoveFolder(oldPath, target); err != nil {
		return "", notFound(err)
	}
	s.resync()
	return target, nil
}

// RenameFolder gives a folder a new name within the same parent.
func (s *Service) RenameFolder(ctx context.Context, oldPath, newName string) (string, error) {
	res := validate.Name(newName)
	if !res.Valid {
		return "", fmt.Errorf("noteservice: folder name: %w", res.Err())
	}
	parent := path.Dir(oldPath)
	if parent == "." {
		parent = ""
	}
	return s.MoveFolder(ctx, oldPath, path.Join(parent, res.Sanitized))
}

// DeleteFolder removes a folder recursively.
func (s *Service) DeleteFolder(_ context.Context, p string) error {
	if err := s.store.DeleteFolder(p); err != nil {
		return notFound(err)
	}
	s.resync()
	return nil
}

// Resync brings the catalog in line with the vault after bulk changes.
func (s *Service) Resync(_ context.Context) error {
	return index.Sync(s.db, s.store, s.logger)
}

func (s *Service) resync() {
	if err := s.Resync(context.Background()); err != nil {
		s.logger.Warn("noteservice: resync failed", slog.String("error", err.Error()))
	}
}
