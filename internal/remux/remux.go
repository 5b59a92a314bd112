// Package remux concatenates locally stored segments into a single
// container without re-encoding.
package remux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"hls-reconstructor/internal/playlist"
)

// Remuxer is the media remux capability consumed by the pipeline.
type Remuxer interface {
	// ConcatCopy stream-copies every segment referenced by the local
	// playlist at playlistPath into target, which receives a fast-start
	// layout where the container supports one. Failures are *RemuxError
	// and leave nothing at target.
	ConcatCopy(ctx context.Context, playlistPath, target string) error
}

// RemuxError is a failed container assembly.
type RemuxError struct {
	Target string
	Err    error
}

func (e *RemuxError) Error() string {
	return fmt.Sprintf("remux %s: %v", e.Target, e.Err)
}

func (e *RemuxError) Unwrap() error { return e.Err }

var (
	// ErrMissingSegment is returned when a referenced local file is absent or unreadable.
	ErrMissingSegment = errors.New("referenced segment missing")

	// ErrUnsupportedExt is returned for an artifact extension no stream-copy
	// muxer is known for.
	ErrUnsupportedExt = errors.New("unsupported artifact extension")
)

// CheckExt reports whether ext can be produced by ConcatCopy without an
// explicit Format.
func CheckExt(ext string) error {
	if muxerFor(strings.TrimPrefix(ext, ".")) == "" {
		return fmt.Errorf("%w: %q (use m4a, mp4, mov, mka, mkv, aac or ts)", ErrUnsupportedExt, ext)
	}
	return nil
}

// FFmpeg implements Remuxer with the ffmpeg HLS demuxer.
type FFmpeg struct {
	// Path is the ffmpeg binary; empty means "ffmpeg" on PATH.
	Path string
	// Format forces the output muxer; empty derives it from Ext.
	Format string
	// Ext is the artifact extension used to pick a muxer when Format is empty.
	Ext string
	log *slog.Logger
}

// NewFFmpeg returns an ffmpeg backed Remuxer producing ext files.
func NewFFmpeg(path, ext string, log *slog.Logger) *FFmpeg {
	return &FFmpeg{Path: path, Ext: strings.TrimPrefix(ext, "."), log: log}
}

// ConcatCopy implements Remuxer.
func (f *FFmpeg) ConcatCopy(ctx context.Context, playlistPath, target string) error {
	if f.Format == "" {
		if err := CheckExt(f.Ext); err != nil {
			return &RemuxError{Target: target, Err: err}
		}
	}
	if err := CheckSegments(playlistPath); err != nil {
		return &RemuxError{Target: target, Err: err}
	}

	bin := f.Path
	if bin == "" {
		bin = "ffmpeg"
	}
	args := f.args(playlistPath, target)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if f.log != nil {
		f.log.Debug("ffmpeg remux", slog.String("playlist", playlistPath), slog.String("target", target))
	}
	err := cmd.Run()
	if err == nil {
		if info, statErr := os.Stat(target); statErr != nil {
			err = fmt.Errorf("output missing: %w", statErr)
		} else if info.Size() == 0 {
			err = errors.New("output is empty")
		}
	}
	if err != nil {
		_ = os.Remove(target)
		if msg := tail(stderr.String(), 5); msg != "" {
			err = fmt.Errorf("ffmpeg: %w: %s", err, msg)
		} else {
			err = fmt.Errorf("ffmpeg: %w", err)
		}
		return &RemuxError{Target: target, Err: err}
	}
	return nil
}

func (f *FFmpeg) args(playlistPath, target string) []string {
	format := f.Format
	if format == "" {
		format = muxerFor(f.Ext)
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-protocol_whitelist", "file",
		"-allowed_extensions", "ALL",
		"-i", playlistPath,
		"-vn",
		"-c", "copy",
	}
	if format == "mp4" || format == "ipod" || format == "mov" {
		args = append(args,
			"-bsf:a", "aac_adtstoasc",
			"-movflags", "+faststart",
		)
	}
	if format != "" {
		args = append(args, "-f", format)
	}
	return append(args, target)
}

func muxerFor(ext string) string {
	switch strings.ToLower(ext) {
	case "m4a", "mp4":
		return "mp4"
	case "mov":
		return "mov"
	case "mka", "mkv":
		return "matroska"
	case "aac":
		return "adts"
	case "ts":
		return "mpegts"
	default:
		return ""
	}
}

// CheckSegments verifies that every local path referenced by the playlist
// at playlistPath can be opened.
func CheckSegments(playlistPath string) error {
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return fmt.Errorf("read local playlist: %w", err)
	}
	for _, l := range playlist.Parse(string(data)).Lines {
		if !l.Kind.IsSegment() {
			continue
		}
		p := l.Text
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(playlistPath), p)
		}
		fh, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMissingSegment, filepath.Base(p))
		}
		fh.Close()
	}
	return nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
