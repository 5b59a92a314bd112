// Package workspace owns the on-disk layout of a reconstruction run: the
// target directory, the exclusive temporary chunk directory and the final
// artifact path.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempDirName is the name of the chunk workspace inside a target directory.
const TempDirName = ".temp_chunks"

// Layout describes where one run writes its output:
// <out_root>/<base_name>/<base_name>.<ext>.
type Layout struct {
	OutRoot  string
	BaseName string
	Ext      string
}

// NewLayout validates its arguments and returns a Layout.
func NewLayout(outRoot, baseName, ext string) (Layout, error) {
	if outRoot == "" {
		return Layout{}, fmt.Errorf("output root is empty")
	}
	if baseName == "" || baseName == "." || baseName == ".." || strings.ContainsAny(baseName, `/\`) {
		return Layout{}, fmt.Errorf("invalid base name %q", baseName)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return Layout{}, fmt.Errorf("artifact extension is empty")
	}
	return Layout{OutRoot: outRoot, BaseName: baseName, Ext: ext}, nil
}

// TargetDir is the directory holding the artifact.
func (l Layout) TargetDir() string {
	return filepath.Join(l.OutRoot, l.BaseName)
}

// ArtifactPath is the path of the final artifact.
func (l Layout) ArtifactPath() string {
	return filepath.Join(l.TargetDir(), l.BaseName+"."+l.Ext)
}

// PartialPath is where an artifact is assembled before it is committed.
func (l Layout) PartialPath() string {
	return l.ArtifactPath() + ".part"
}

// DirectPath is the hidden file the extraction service downloads into
// before it is committed. It keeps the artifact extension so the tool does
// not append one of its own.
func (l Layout) DirectPath() string {
	return filepath.Join(l.TargetDir(), "."+l.BaseName+".direct."+l.Ext)
}

// WorkspaceDir is the path of the temporary chunk directory.
func (l Layout) WorkspaceDir() string {
	return filepath.Join(l.TargetDir(), TempDirName)
}

// EnsureTargetDir creates the target directory if needed.
func (l Layout) EnsureTargetDir() error {
	if err := os.MkdirAll(l.TargetDir(), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	return nil
}

// Commit atomically moves a fully written file at partial to the artifact
// path. partial must live in the target directory.
func (l Layout) Commit(partial string) error {
	info, err := os.Stat(partial)
	if err != nil {
		return fmt.Errorf("stat partial artifact: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("partial artifact %s is empty", partial)
	}
	if err := os.Rename(partial, l.ArtifactPath()); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

// Discard removes any partially written artifact, and the artifact itself
// when it was left behind. Missing files are not an error.
func (l Layout) Discard(paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
