package fsutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// StagingArea keeps uploads in a local directory until they are processed.
type StagingArea struct {
	fs  FileStore
	dir string
}

func NewStagingArea(fs FileStore, dir string) *StagingArea {
	return &StagingArea{fs: fs, dir: dir}
}

func (s *StagingArea) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid staging key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *StagingArea) Put(_ context.Context, key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.WriteFile(p, data); err != nil {
		return fmt.Errorf("failed to stage %s: %w", key, err)
	}
	return nil
}

func (s *StagingArea) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged %s: %w", key, err)
	}
	return data, nil
}

func (s *StagingArea) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return s.fs.Remove(p)
}
