package playlist

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// IsMaster reports whether text looks like a master (multivariant) playlist.
func IsMaster(text string) bool {
	return strings.Contains(text, "#EXT-X-STREAM-INF")
}

// SelectVariant decodes a master playlist and returns the absolute URL of
// its highest-bandwidth variant, resolved against masterURL.
func SelectVariant(text, masterURL string) (string, error) {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(text), true)
	if err != nil {
		return "", fmt.Errorf("decode master playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return "", fmt.Errorf("not a master playlist")
	}
	master := pl.(*m3u8.MasterPlaylist)

	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", fmt.Errorf("master playlist has no variants")
	}

	base, err := url.Parse(masterURL)
	if err != nil {
		return "", fmt.Errorf("parse master url: %w", err)
	}
	ref, err := url.Parse(best.URI)
	if err != nil {
		return "", fmt.Errorf("parse variant uri: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
