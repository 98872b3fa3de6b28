// Package attachments stores images uploaded for notes in the per-folder
// _attachments directory.
package attachments

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notegraph/internal/storage"
)

// MaxSize is the largest accepted image.
const MaxSize = 10 << 20

var (
	ErrUnsupported = errors.New("unsupported image type")
	ErrTooLarge    = errors.New("image too large")
	ErrMismatch    = errors.New("content does not match extension")
)

var (
	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}

	unsafeRe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// Saved describes a stored image.
type Saved struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Markdown string `json:"markdown"`
}

// Store writes images through the vault storage.
type Store struct {
	files storage.Provider
	now   func() time.Time
}

// New returns a Store writing to files.
func New(files storage.Provider) *Store {
	return &Store{files: files, now: time.Now}
}

// Dir returns the attachments directory for the note at notePath.
func Dir(notePath string) string {
	folder := path.Dir(strings.Trim(notePath, "/"))
	if folder == "." || folder == "" {
		return storage.AttachmentsDir
	}
	return folder + "/" + storage.AttachmentsDir
}

// SanitizeFilename replaces everything but letters, digits, '_' and '-' in
// the stem with '_'. The extension is lowercased.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(path.Ext(name))
	stem := strings.TrimSuffix(name, path.Ext(name))
	stem = unsafeRe.ReplaceAllString(stem, "_")
	if stem == "" || strings.Trim(stem, "_") == "" {
		stem = uuid.NewString()
	}
	return stem + ext
}

// IsImage reports whether p has an allowed image extension.
func IsImage(p string) bool {
	return storage.ImageExtensions[strings.ToLower(path.Ext(p))]
}

// Validate checks size, extension and magic bytes.
func Validate(filename string, data []byte) error {
	ext := strings.ToLower(path.Ext(filename))
	if !storage.ImageExtensions[ext] {
		return fmt.Errorf("attachments: %q: %w (allowed: jpg, jpeg, png, gif, webp)", filename, ErrUnsupported)
	}
	if len(data) > MaxSize {
		return fmt.Errorf("attachments: %d bytes: %w (max %d)", len(data), ErrTooLarge, MaxSize)
	}
	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got != ext {
		return fmt.Errorf("attachments: %s (detected %s): %w", filename, detected, ErrMismatch)
	}
	return nil
}

// Save validates data and stores it next to the note at notePath as
// "<stem>-YYYYMMDDHHMMSS<ext>".
func (s *Store) Save(notePath, filename string, data []byte) (Saved, error) {
	clean := SanitizeFilename(filename)
	if err := Validate(clean, data); err != nil {
		return Saved{}, err
	}

	ext := path.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)
	stamp := s.now().Format("20060102150405")
	dir := Dir(notePath)

	name := fmt.Sprintf("%s-%s%s", stem, stamp, ext)
	for i := 2; s.files.Exists(dir + "/" + name); i++ {
		name = fmt.Sprintf("%s-%s-%d%s", stem, stamp, i, ext)
	}
	p := dir + "/" + name
	if err := s.files.Write(p, data); err != nil {
		return Saved{}, fmt.Errorf("attachments: save %s: %w", p, err)
	}
	return Saved{
		Path:     p,
		Filename: name,
		Size:     int64(len(data)),
		Markdown: fmt.Sprintf("![%s](%s/%s)", stem, storage.AttachmentsDir, name),
	}, nil
}

// Resolve returns the absolute file for an image path, rejecting
// traversal and non-image files.
func (s *Store) Resolve(p string) (string, error) {
	if !IsImage(p) {
		return "", fmt.Errorf("attachments: %s: %w", p, ErrUnsupported)
	}
	return s.files.Resolve(p)
}
