package playlist

import "path/filepath"

// RewriteLocal returns a playlist with the same lines as p in which every
// segment reference, absolute or relative, is replaced by the absolute path
// of its sanitized file inside dir. Directives are kept in place.
func RewriteLocal(p *Playlist, dir string) (*Playlist, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	out := p.clone()
	for i, l := range out.Lines {
		if !l.Kind.IsSegment() {
			continue
		}
		out.Lines[i] = Line{Kind: LocalRef, Text: filepath.Join(abs, LocalName(l.Text))}
	}
	return out, nil
}
