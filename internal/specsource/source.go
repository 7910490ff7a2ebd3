// Package specsource loads the given/when/then narrative a run starts from.
package specsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrEmptyNarrative = errors.New("narrative is empty")

// Source resolves a reference (file name, issue id) to narrative text.
type Source interface {
	Fetch(ctx context.Context, ref string) (string, error)
	Name() string
}

// FileSource reads narratives from disk. Relative references are resolved
// against Dir.
type FileSource struct {
	Dir string
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Fetch(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("file reference is required")
	}
	path := ref
	if !filepath.IsAbs(path) && s.Dir != "" {
		path = filepath.Join(s.Dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read narrative: %w", err)
	}
	return nonEmpty(string(data), path)
}

func nonEmpty(text, ref string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyNarrative, ref)
	}
	return text, nil
}
