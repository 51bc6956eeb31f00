package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// LocalStore keeps attachments in a directory served under a public prefix.
type LocalStore struct {
	dir      string
	prefix   string
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewLocalStore ensures dir exists and returns the store.
func NewLocalStore(dir, prefix string, maxBytes int64, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalStore{
		dir:      dir,
		prefix:   prefix,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *LocalStore) Save(_ context.Context, upload Upload) (string, error) {
	if err := Validate(upload.Filename, upload.ContentType, upload.Size, s.maxBytes); err != nil {
		return "", err
	}
	data, err := readLimited(upload.Content, s.maxBytes)
	if err != nil {
		return "", err
	}

	name := storedName(upload.Filename, s.now())
	dst := filepath.Join(s.dir, name)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write attachment: %w", err)
	}

	ref := path.Join(s.prefix, name)
	s.logger.Info("attachment stored", zap.String("ref", ref), zap.String("original", upload.Filename))
	return ref, nil
}

func (s *LocalStore) Open(_ context.Context, ref string) (*Blob, error) {
	name, ok := refName(s.prefix, ref)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Blob{
		Filename:    name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Content:     data,
	}, nil
}

// Release removes the file. Missing files are not an error.
func (s *LocalStore) Release(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	name, ok := refName(s.prefix, ref)
	if !ok {
		s.logger.Warn("ignoring release of foreign attachment reference", zap.String("ref", ref))
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	s.logger.Info("attachment released", zap.String("ref", ref))
	return nil
}
