package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"hls-reconstructor/internal/playlist"
)

// Rename records one file moved by Sanitize.
type Rename struct {
	From string
	To   string
	// Replaced is true when a file already existed under To.
	Replaced bool
}

// SanitizeResult lists the renames performed in a directory.
type SanitizeResult struct {
	Renames []Rename
}

// Collisions returns the renames that replaced an existing file.
func (r SanitizeResult) Collisions() []Rename {
	var out []Rename
	for _, rn := range r.Renames {
		if rn.Replaced {
			out = append(out, rn)
		}
	}
	return out
}

// Sanitize renames every regular file in dir whose name carries a query
// suffix to the name before the first "?". Contents are never touched; when
// the clean name already exists the renamed file wins.
func Sanitize(dir string) (SanitizeResult, error) {
	var res SanitizeResult
	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("read workspace: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		clean := playlist.SanitizeName(e.Name())
		if clean == e.Name() {
			continue
		}
		if clean == "" {
			return res, fmt.Errorf("sanitize %q: empty file name", e.Name())
		}
		from := filepath.Join(dir, e.Name())
		to := filepath.Join(dir, clean)
		_, statErr := os.Stat(to)
		if err := os.Rename(from, to); err != nil {
			return res, fmt.Errorf("sanitize %q: %w", e.Name(), err)
		}
		res.Renames = append(res.Renames, Rename{From: e.Name(), To: clean, Replaced: statErr == nil})
	}
	return res, nil
}
