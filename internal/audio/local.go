package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalArchive stores payloads and transcript sidecars under one directory.
// Files are named by content id and never cleaned up.
type LocalArchive struct {
	dir string
}

func NewLocalArchive(dir string) (*LocalArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio dir %s: %w", dir, err)
	}
	return &LocalArchive{dir: dir}, nil
}

func (a *LocalArchive) SaveAudio(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(a.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func (a *LocalArchive) SaveTranscript(_ context.Context, name, text string) error {
	path := filepath.Join(a.dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
