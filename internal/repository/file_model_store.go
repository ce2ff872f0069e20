package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"WeatherCast/internal/domain/models"
	domrepo "WeatherCast/internal/domain/repository"
	applogger "WeatherCast/pkg/logger"
)

// FileModelStore keeps one blob per model under a directory.
type FileModelStore struct {
	dir string
	l   *applogger.Logger
}

func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *FileModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FileModelStore) Dir() string { return s.dir }

// Path returns the file a model name maps to.
func (s *FileModelStore) Path(name string) (string, error) {
	file, err := modelFileName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, file), nil
}

// Save writes to a temp file in the same directory, syncs it and renames it
// over the destination. A failure at any step leaves the destination as it was.
func (s *FileModelStore) Save(ctx context.Context, name string, m *models.TrainedModel) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	blob, err := EncodeModel(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("commit model: %w", err)
	}
	committed = true

	s.l.Info("model saved",
		applogger.String("path", path),
		applogger.Int("bytes", len(blob)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *FileModelStore) Load(ctx context.Context, name string) (*models.TrainedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(name)
	if err != nil {
		return nil, models.NewModelLoadError(name, "bad name", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, models.NewModelLoadError(name, path, models.ErrModelNotFound)
		}
		return nil, models.NewModelLoadError(name, "read", err)
	}
	m, err := DecodeModel(name, data)
	if err != nil {
		s.l.Error("model load failed", applogger.String("path", path), applogger.Error(err))
		return nil, err
	}
	return m, nil
}

func (s *FileModelStore) Exists(ctx context.Context, name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// modelFileName validates a model name and adds the default extension.
func modelFileName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("model name is empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("model name %q must not contain path separators", name)
	}
	if filepath.Ext(name) == "" {
		name += ModelFileExt
	}
	return name, nil
}

var _ domrepo.ModelStore = (*FileModelStore)(nil)
