package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/checksum"
	"github.com/starford/notegraph/internal/models"
)

const (
	noteExt = ".md"
	// AttachmentsDir is the per-folder directory holding uploaded images.
	AttachmentsDir = "_attachments"
)

// ImageExtensions are the file types listed and served as images.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalidPath)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s: %w", rel, apperr.ErrInvalidPath)
	}
	return abs, nil
}

// Resolve exposes safePath for callers serving files directly.
func (f *FS) Resolve(rel string) (string, error) {
	return f.safePath(rel)
}

func (f *FS) rel(abs string) string {
	r, _ := filepath.Rel(f.root, abs)
	return filepath.ToSlash(r)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// List walks dir and returns checksum metadata for every .md file.
func (f *FS) List(dir string) ([]models.NoteMetadata, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.NoteMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), noteExt) || hidden(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.NoteMetadata{
			Path:      f.rel(p),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Listing returns all notes plus images inside attachment folders, newest
// first, and every folder (empty ones included) in lexical order. Dot-prefixed
// entries are skipped.
func (f *FS) Listing() (models.Listing, error) {
	out := models.Listing{Notes: []models.Note{}, Folders: []string{}}
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == f.root {
			return nil
		}
		if hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel := f.rel(p)
		if d.IsDir() {
			out.Folders = append(out.Folders, rel)
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		isNote := ext == noteExt
		isImage := ImageExtensions[ext] && path.Base(path.Dir(rel)) == AttachmentsDir
		if !isNote && !isImage {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		n := models.NewNote(rel, info.ModTime(), info.Size())
		if isImage {
			n.Type = models.TypeImage
		}
		out.Notes = append(out.Notes, n)
		return nil
	})
	if err != nil {
		return models.Listing{}, fmt.Errorf("storage: listing: %w", err)
	}
	sort.SliceStable(out.Notes, func(i, j int) bool {
		return out.Notes[i].Modified.After(out.Notes[j].Modified)
	})
	sort.Strings(out.Folders)
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: write: empty path: %w", apperr.ErrInvalidPath)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".notegraph-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a file within the vault. Emptied source folders are kept.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, absNew, err := f.movePaths(oldPath, newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absOld); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

func (f *FS) movePaths(oldPath, newPath string) (string, string, error) {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return "", "", err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return "", "", err
	}
	if absOld == f.root || absNew == f.root {
		return "", "", fmt.Errorf("storage: move vault root: %w", apperr.ErrInvalidPath)
	}
	if _, err := os.Stat(absNew); err == nil {
		return "", "", fmt.Errorf("storage: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return "", "", fmt.Errorf("storage: mkdir for move: %w", err)
	}
	return absOld, absNew, nil
}

// Stat returns size, modification time and line count of a file.
func (f *FS) Stat(path string) (models.FileInfo, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.FileInfo{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.FileInfo{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.FileInfo{}, fmt.Errorf("storage: stat %s: is a folder: %w", path, apperr.ErrInvalidPath)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.FileInfo{}, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return models.FileInfo{
		Modified: info.ModTime(),
		Size:     info.Size(),
		Lines:    countLines(data),
	}, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// Exists reports whether anything exists at path.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// CreateFolder creates path and any missing parents. Creating an existing
// folder is not an error.
func (f *FS) CreateFolder(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: create folder: empty path: %w", apperr.ErrInvalidPath)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("storage: create folder %s: %w", path, err)
	}
	return nil
}

// MoveFolder moves a folder with its contents. The target must not exist.
func (f *FS) MoveFolder(oldPath, newPath string) error {
	absOld, absNew, err := f.movePaths(oldPath, newPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(absOld)
	if err != nil {
		return fmt.Errorf("storage: move folder %s: %w", oldPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: move folder %s: not a folder: %w", oldPath, apperr.ErrInvalidPath)
	}
	if strings.HasPrefix(absNew, absOld+string(os.PathSeparator)) {
		return fmt.Errorf("storage: move folder %s into itself: %w", oldPath, apperr.ErrInvalidPath)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move folder: %w", err)
	}
	return nil
}

// DeleteFolder removes a folder and everything in it.
func (f *FS) DeleteFolder(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: delete vault root: %w", apperr.ErrInvalidPath)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("storage: delete folder %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: delete folder %s: not a folder: %w", path, apperr.ErrInvalidPath)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("storage: delete folder %s: %w", path, err)
	}
	return nil
}

// IsNotExist reports whether err means the file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
