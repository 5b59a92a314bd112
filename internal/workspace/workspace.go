package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrReleased is returned when a released workspace is used again.
var ErrReleased = errors.New("workspace already released")

// Workspace is an exclusive temporary directory that holds the segments and
// intermediate playlists of one run.
type Workspace struct {
	dir      string
	released bool
}

// Acquire creates the workspace directory for l. A directory left behind by
// a run that was killed is removed first; creation itself is exclusive, so
// two live acquirers of the same layout cannot share it.
func Acquire(l Layout) (*Workspace, error) {
	if err := l.EnsureTargetDir(); err != nil {
		return nil, err
	}
	dir := l.WorkspaceDir()
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("remove stale workspace: %w", err)
		}
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &Workspace{dir: abs}, nil
}

// Dir returns the absolute workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// WriteFile writes an intermediate file such as a playlist into the workspace.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	if w.released {
		return "", ErrReleased
	}
	p := w.Path(name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return p, nil
}

// Release recursively removes the workspace. It is safe to call more than once.
func (w *Workspace) Release() error {
	if w == nil || w.released {
		return nil
	}
	w.released = true
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}
