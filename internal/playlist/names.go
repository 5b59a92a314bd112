package playlist

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// maxRawName bounds a raw file name well below NAME_MAX, leaving room for
// the ".part" suffix used while downloading.
const maxRawName = 200

// queryEscaper keeps a query usable as part of a single file name.
var queryEscaper = strings.NewReplacer("%", "%25", "/", "%2F", "\\", "%5C", "\x00", "%00")

var (
	// ErrNameCollision is returned when two distinct references resolve to
	// the same local file name.
	ErrNameCollision = errors.New("segment references collide on local name")

	// ErrInvalidReference is returned for references with no usable file name.
	ErrInvalidReference = errors.New("segment reference has no file name")
)

// SplitRef splits a reference into the last component of its path and its
// query string (without the "?"). A fragment is dropped.
func SplitRef(ref string) (name, query string) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.Index(ref, "?"); i >= 0 {
		ref, query = ref[:i], ref[i+1:]
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return ref, query
}

// LocalName is the on-disk name a reference must end up under: its last
// path component without any query suffix.
func LocalName(ref string) string {
	name, _ := SplitRef(ref)
	return name
}

// RawName is the file name a reference translates to before sanitizing:
// the last path component with its query string still attached. Path
// separators in the query are escaped, and a query that would push the name
// past maxRawName is replaced by a digest, so the result is always a single
// flat name whose SanitizeName is LocalName(ref).
func RawName(ref string) string {
	name, query := SplitRef(ref)
	if query == "" {
		return name
	}
	q := queryEscaper.Replace(query)
	if len(name)+1+len(q) > maxRawName {
		sum := sha256.Sum256([]byte(query))
		q = hex.EncodeToString(sum[:8])
	}
	return name + "?" + q
}

// SanitizeName strips everything from the first "?" onward.
func SanitizeName(name string) string {
	if i := strings.Index(name, "?"); i >= 0 {
		return name[:i]
	}
	return name
}

// CheckNames verifies that every distinct segment reference of p maps to a
// distinct, usable local name.
func CheckNames(p *Playlist) error {
	owner := make(map[string]string)
	for _, l := range p.Lines {
		if !l.Kind.IsSegment() {
			continue
		}
		name := LocalName(l.Text)
		if name == "" || name == "." || name == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidReference, l.Text)
		}
		if prev, ok := owner[name]; ok && prev != l.Text {
			return fmt.Errorf("%w: %q and %q both map to %q", ErrNameCollision, prev, l.Text, name)
		}
		owner[name] = l.Text
	}
	return nil
}
