// Package artifact keeps the files produced during one run: scenario XML,
// per-step DOM snapshots, element lists and screenshots, and the final
// validation excerpt.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is an ephemeral per-run directory.
type Workspace struct {
	root    string
	created bool
}

// NewWorkspace creates the run directory under base, or under the system
// temp dir when base is empty.
func NewWorkspace(base, runID string) (*Workspace, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("run id is required")
	}
	if base == "" {
		dir, err := os.MkdirTemp("", "stepwright-"+sanitize(runID)+"-")
		if err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		return &Workspace{root: dir, created: true}, nil
	}
	dir := filepath.Join(base, sanitize(runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: dir, created: true}, nil
}

func (w *Workspace) Root() string { return w.root }

// ScenarioFile is the XML file describing scenario i.
func (w *Workspace) ScenarioFile(i int) string {
	return filepath.Join(w.root, fmt.Sprintf("scenario-%02d.xml", i))
}

// StepFile names an artifact of scenario i captured at label
// ("initial", "step-03", "final").
func (w *Workspace) StepFile(i int, label, ext string) string {
	return filepath.Join(w.root, fmt.Sprintf("scenario-%02d", i), label+ext)
}

func (w *Workspace) ValidationExcerpt(i int) string {
	return w.StepFile(i, "validation-excerpt", ".html")
}

// Write stores data at path atomically.
func (w *Workspace) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write artifact tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

// Cleanup removes the run directory.
func (w *Workspace) Cleanup() error {
	if !w.created {
		return nil
	}
	w.created = false
	return os.RemoveAll(w.root)
}

func StepLabel(index int) string {
	return fmt.Sprintf("step-%02d", index)
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.ReplaceAll(id, "..", "_")
	if id == "" {
		return "run"
	}
	return id
}
