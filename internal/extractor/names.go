package extractor

import (
	"strings"
	"unicode"
)

const maxBaseNameRunes = 96

// BaseName builds a filesystem-safe base name from stream metadata.
func BaseName(title, id string) string {
	title = SafeName(title)
	id = SafeName(id)
	switch {
	case title == "" && id == "":
		return "stream"
	case title == "":
		return id
	case id == "":
		return title
	default:
		return title + "_" + id
	}
}

// SafeName replaces path separators, control characters and shell-hostile
// punctuation with underscores, collapses runs of them, and truncates.
func SafeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	n := 0
	for _, r := range strings.TrimSpace(s) {
		if n >= maxBaseNameRunes {
			break
		}
		ok := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.'
		if !ok {
			if lastUnderscore {
				continue
			}
			r = '_'
		}
		lastUnderscore = r == '_'
		b.WriteRune(r)
		n++
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" || strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}
