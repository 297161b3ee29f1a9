// Package upload stores admin-submitted images under random names.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MaxImageSize caps uploaded images at 10 MiB.
const MaxImageSize = 10 << 20

// ErrBadExtension is returned for files outside the image allowlist.
var ErrBadExtension = errors.New("only jpg, jpeg, and png files are allowed")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Saver writes images into a single directory.
type Saver struct {
	dir string
}

func NewSaver(dir string) *Saver {
	return &Saver{dir: dir}
}

// SaveImage validates the extension and size, then stores the file under a
// random name, returning the stored filename. The client-supplied name is
// never used on disk.
func (s *Saver) SaveImage(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt[ext] {
		return "", ErrBadExtension
	}
	if header.Size > MaxImageSize {
		return "", fmt.Errorf("file too large: %d bytes", header.Size)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(file, MaxImageSize+1)); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Remove deletes a stored image by name. Missing files are not an error.
func (s *Saver) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
