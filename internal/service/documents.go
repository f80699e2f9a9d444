package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned by Delete when no saved file matches.
var ErrDocumentNotFound = errors.New("document not found")

// ErrInvalidFilename is returned for names that reduce to nothing usable.
var ErrInvalidFilename = errors.New("invalid filename")

const suffixLen = 8

// Archiver keeps an off-host copy of saved documents.
type Archiver interface {
	Archive(ctx context.Context, path string) error
	Remove(ctx context.Context, path string) error
}

// DocumentService manages the files in the source directory.
type DocumentService struct {
	dir      string
	archiver Archiver
	logger   *slog.Logger
}

// NewDocumentService creates a service for dir. archiver may be nil.
func NewDocumentService(dir string, archiver Archiver, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{dir: dir, archiver: archiver, logger: logger}
}

// Save writes r under a collision-free name derived from originalName and
// returns the saved path.
func (s *DocumentService) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(originalName, "\\", "/")))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, originalName)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create source dir: %w", err)
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", base, suffix, ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, path); err != nil {
			s.logger.Warn("failed to archive document", "path", path, "error", err)
		}
	}
	s.logger.Info("document saved", "original", originalName, "path", path)
	return path, nil
}

// Delete removes the saved file for originalName and returns its path.
func (s *DocumentService) Delete(ctx context.Context, originalName string) (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, originalName)
		}
		return "", fmt.Errorf("read source dir: %w", err)
	}

	var match string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchesOriginal(e.Name(), originalName) {
			match = filepath.Join(s.dir, e.Name())
			break
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, originalName)
	}

	if err := os.Remove(match); err != nil {
		return "", fmt.Errorf("remove %s: %w", match, err)
	}
	if s.archiver != nil {
		if err := s.archiver.Remove(ctx, match); err != nil {
			s.logger.Warn("failed to remove archived document", "path", match, "error", err)
		}
	}
	s.logger.Info("document deleted", "original", originalName, "path", match)
	return match, nil
}

// List returns the original names of all documents in the source directory,
// sorted. A missing directory yields an empty list.
func (s *DocumentService) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read source dir: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		names = append(names, OriginalName(name))
	}
	slices.Sort(names)
	return names, nil
}

// OriginalName strips the random suffix added by Save.
func OriginalName(saved string) string {
	ext := filepath.Ext(saved)
	return stripSuffix(strings.TrimSuffix(saved, ext)) + ext
}

func stripSuffix(base string) string {
	if len(base) <= suffixLen+1 || base[len(base)-suffixLen-1] != '_' {
		return base
	}
	if !isLowerHex(base[len(base)-suffixLen:]) {
		return base
	}
	return base[:len(base)-suffixLen-1]
}

func matchesOriginal(saved, original string) bool {
	if saved == original {
		return true
	}
	ext := filepath.Ext(original)
	if filepath.Ext(saved) != ext {
		return false
	}
	return stripSuffix(strings.TrimSuffix(saved, ext)) == strings.TrimSuffix(original, ext)
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
