// Package playlist parses HLS playlists into a line-preserving model and
// implements the transformations applied to them during reconstruction:
// normalizing relative references against the playlist location and
// rewriting segment references to local files.
package playlist

import (
	"regexp"
	"strings"
)

// DirectiveMarker starts every tag and comment line of an HLS playlist.
const DirectiveMarker = "#"

// ContentType is the MIME type used when serving playlists over HTTP.
const ContentType = "application/vnd.apple.mpegurl"

// Kind classifies a single playlist line.
type Kind int

const (
	// Directive is a tag or comment line, or a blank line. It is passed
	// through every transformation untouched.
	Directive Kind = iota
	// AbsoluteRef is a segment reference carrying a URL scheme.
	AbsoluteRef
	// RelativeRef is a segment reference relative to the playlist location.
	RelativeRef
	// LocalRef is a segment reference rewritten to a local filesystem path.
	LocalRef
)

func (k Kind) String() string {
	switch k {
	case Directive:
		return "directive"
	case AbsoluteRef:
		return "absolute"
	case RelativeRef:
		return "relative"
	case LocalRef:
		return "local"
	default:
		return "unknown"
	}
}

// IsSegment reports whether lines of this kind reference media.
func (k Kind) IsSegment() bool {
	return k != Directive
}

// Line is one line of a playlist. For segment kinds Text is the reference
// with surrounding whitespace removed; for directives it is kept verbatim.
type Line struct {
	Kind Kind
	Text string
}

// Playlist is an ordered sequence of lines. Order defines concatenation
// order and is preserved by every transformation in this package.
type Playlist struct {
	Lines []Line

	// TrailingNewline records whether the source text ended with a newline
	// so Encode reproduces it.
	TrailingNewline bool
}

var absoluteURL = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// Classify returns the kind of a raw playlist line. Directives are checked
// first, then absolute URLs; everything else is relative.
func Classify(raw string) Kind {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || strings.HasPrefix(s, DirectiveMarker):
		return Directive
	case absoluteURL.MatchString(s):
		return AbsoluteRef
	default:
		return RelativeRef
	}
}

// Parse splits text into lines and classifies each one. CRLF line endings
// are accepted; Encode always emits LF.
func Parse(text string) *Playlist {
	p := &Playlist{}
	if text == "" {
		return p
	}
	if strings.HasSuffix(text, "\n") {
		p.TrailingNewline = true
		text = strings.TrimSuffix(text, "\n")
	}
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		kind := Classify(raw)
		if kind.IsSegment() {
			raw = strings.TrimSpace(raw)
		}
		p.Lines = append(p.Lines, Line{Kind: kind, Text: raw})
	}
	return p
}

// Encode renders the playlist back to text, one line per Line.
func (p *Playlist) Encode() string {
	var b strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(l.Text)
	}
	if p.TrailingNewline && len(p.Lines) > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// Len returns the number of lines.
func (p *Playlist) Len() int {
	return len(p.Lines)
}

// SegmentCount returns the number of segment lines.
func (p *Playlist) SegmentCount() int {
	n := 0
	for _, l := range p.Lines {
		if l.Kind.IsSegment() {
			n++
		}
	}
	return n
}

// Ended reports whether the playlist carries #EXT-X-ENDLIST.
func (p *Playlist) Ended() bool {
	for _, l := range p.Lines {
		if l.Kind == Directive && strings.HasPrefix(strings.TrimSpace(l.Text), "#EXT-X-ENDLIST") {
			return true
		}
	}
	return false
}

func (p *Playlist) clone() *Playlist {
	lines := make([]Line, len(p.Lines))
	copy(lines, p.Lines)
	return &Playlist{Lines: lines, TrailingNewline: p.TrailingNewline}
}
