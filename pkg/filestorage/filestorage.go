package filestorage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrFileTooLarge is returned when the measured size of an upload exceeds the
// configured limit. The callers map it to a payload-too-large response.
var ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

// ResultStorageInterface stores result files under a directory keyed by the
// request number. Same-named uploads never overwrite each other; the stored
// name gets a _1, _2, ... suffix before the extension instead.
type ResultStorageInterface interface {
	Save(file io.Reader, originalName, requestNumber string) (storedName string, relPath string, err error)
	Delete(relPath string) error
	AbsPath(relPath string) string
}

type LocalResultStorage struct {
	basePath    string
	maxFileSize int64
}

func NewLocalResultStorage(basePath string, maxFileSize int64) (*LocalResultStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalResultStorage{basePath: basePath, maxFileSize: maxFileSize}, nil
}

// Save writes the stream to a staging file first, then links it into the
// request's directory under a collision-free name. The link step is atomic,
// so concurrent uploads of the same name each re-probe and land on distinct
// candidates; the loop is bounded only by actual collisions.
func (s *LocalResultStorage) Save(file io.Reader, originalName, requestNumber string) (string, string, error) {
	stagingDir := filepath.Join(s.basePath, ".staging")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", "", err
	}

	stagingPath := filepath.Join(stagingDir, uuid.New().String())
	if err := s.writeStaging(stagingPath, file); err != nil {
		return "", "", err
	}
	defer os.Remove(stagingPath)

	requestDir := filepath.Join(s.basePath, requestNumber)
	if err := os.MkdirAll(requestDir, 0o755); err != nil {
		return "", "", err
	}

	base := filepath.Base(originalName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for counter := 0; ; counter++ {
		candidate := base
		if counter > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, counter, ext)
		}

		err := os.Link(stagingPath, filepath.Join(requestDir, candidate))
		if err == nil {
			return candidate, filepath.ToSlash(filepath.Join(requestNumber, candidate)), nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", err
		}
	}
}

func (s *LocalResultStorage) writeStaging(path string, file io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()

	limit := io.Reader(file)
	if s.maxFileSize > 0 {
		limit = io.LimitReader(file, s.maxFileSize+1)
	}

	written, err := io.Copy(dst, limit)
	if err != nil {
		os.Remove(path)
		return err
	}
	if s.maxFileSize > 0 && written > s.maxFileSize {
		os.Remove(path)
		return ErrFileTooLarge
	}
	return nil
}

// Delete removes the stored file. A file that is already gone is not an
// error.
func (s *LocalResultStorage) Delete(relPath string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(relPath))
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalResultStorage) AbsPath(relPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(relPath))
}
