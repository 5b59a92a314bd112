package playlist

import "strings"

// BasePath returns mediaURL up to and including its final "/". It returns
// the empty string when mediaURL contains no separator.
func BasePath(mediaURL string) string {
	i := strings.LastIndex(mediaURL, "/")
	if i < 0 {
		return ""
	}
	return mediaURL[:i+1]
}

// Normalize returns a copy of p in which every relative reference has been
// prefixed with the base path of mediaURL. Directives and absolute
// references are unchanged. A playlist without segments is valid.
func Normalize(p *Playlist, mediaURL string) *Playlist {
	base := BasePath(mediaURL)
	out := p.clone()
	for i, l := range out.Lines {
		if l.Kind != RelativeRef {
			continue
		}
		out.Lines[i] = Line{Kind: AbsoluteRef, Text: base + l.Text}
	}
	return out
}

// SegmentURLs returns the distinct absolute references of p in first-seen
// order. Relative references are skipped, so p should be normalized first.
func SegmentURLs(p *Playlist) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, l := range p.Lines {
		if l.Kind != AbsoluteRef || seen[l.Text] {
			continue
		}
		seen[l.Text] = true
		urls = append(urls, l.Text)
	}
	return urls
}
