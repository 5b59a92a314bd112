package remux

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// writeTool writes an executable shell script standing in for ffmpeg.
func writeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools need a POSIX shell")
	}
	p := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do last=$a; done\n" + body + "\n"
	if err := os.WriteFile(p, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

// writeLocalPlaylist creates segments and a local playlist referencing them.
func writeLocalPlaylist(t *testing.T, names ...string) (dir, playlistPath string) {
	t.Helper()
	dir = t.TempDir()
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("seg:"+n), 0o644); err != nil {
			t.Fatal(err)
		}
		b.WriteString("#EXTINF:2.0,\n" + p + "\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	playlistPath = filepath.Join(dir, "local.m3u8")
	if err := os.WriteFile(playlistPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, playlistPath
}

func TestFFmpeg_args(t *testing.T) {
	f := NewFFmpeg("", "m4a", nil)
	args := strings.Join(f.args("/w/local.m3u8", "/out/a.m4a.part"), " ")
	for _, want := range []string{
		"-i /w/local.m3u8",
		"-c copy",
		"-movflags +faststart",
		"-bsf:a aac_adtstoasc",
		"-f mp4",
		"-protocol_whitelist file",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "/out/a.m4a.part") {
		t.Errorf("target should be last: %s", args)
	}
}

func TestFFmpeg_args_non_mp4(t *testing.T) {
	args := strings.Join(NewFFmpeg("", "mka", nil).args("in.m3u8", "out"), " ")
	if strings.Contains(args, "faststart") || strings.Contains(args, "aac_adtstoasc") {
		t.Errorf("matroska output should not carry mp4 options: %s", args)
	}
	if !strings.Contains(args, "-f matroska") {
		t.Errorf("expected matroska muxer: %s", args)
	}
}

func TestCheckSegments(t *testing.T) {
	dir, pl := writeLocalPlaylist(t, "seg1.aac", "seg2.aac")
	if err := CheckSegments(pl); err != nil {
		t.Fatalf("CheckSegments: %v", err)
	}
	os.Remove(filepath.Join(dir, "seg2.aac"))
	if err := CheckSegments(pl); !errors.Is(err, ErrMissingSegment) {
		t.Errorf("expected ErrMissingSegment, got %v", err)
	}
}

func TestConcatCopy_success(t *testing.T) {
	tool := writeTool(t, `printf remuxed > "$last"`)
	_, pl := writeLocalPlaylist(t, "seg1.aac")
	target := filepath.Join(t.TempDir(), "out.m4a.part")

	if err := NewFFmpeg(tool, "m4a", nil).ConcatCopy(context.Background(), pl, target); err != nil {
		t.Fatalf("ConcatCopy: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "remuxed" {
		t.Errorf("target content %q, err=%v", data, err)
	}
}

func TestConcatCopy_tool_failure_removes_output(t *testing.T) {
	tool := writeTool(t, `printf partial > "$last"; echo "Invalid data found when processing input" >&2; exit 1`)
	_, pl := writeLocalPlaylist(t, "seg1.aac")
	target := filepath.Join(t.TempDir(), "out.m4a.part")

	err := NewFFmpeg(tool, "m4a", nil).ConcatCopy(context.Background(), pl, target)
	var re *RemuxError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemuxError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("stderr should be surfaced: %v", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("partial output must be removed on failure")
	}
}

func TestConcatCopy_empty_output_is_error(t *testing.T) {
	tool := writeTool(t, `: > "$last"`)
	_, pl := writeLocalPlaylist(t, "seg1.aac")
	target := filepath.Join(t.TempDir(), "out.m4a.part")

	err := NewFFmpeg(tool, "m4a", nil).ConcatCopy(context.Background(), pl, target)
	if err == nil {
		t.Fatal("expected error for zero-byte output")
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("zero-byte output must be removed")
	}
}

func TestConcatCopy_missing_segment_skips_tool(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	tool := writeTool(t, `touch "`+marker+`"`)
	dir, pl := writeLocalPlaylist(t, "seg1.aac", "seg2.aac")
	os.Remove(filepath.Join(dir, "seg1.aac"))

	err := NewFFmpeg(tool, "m4a", nil).ConcatCopy(context.Background(), pl, filepath.Join(dir, "out.part"))
	if !errors.Is(err, ErrMissingSegment) {
		t.Errorf("expected ErrMissingSegment, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("ffmpeg should not run when segments are missing")
	}
}

func TestCheckExt(t *testing.T) {
	for _, ext := range []string{"m4a", ".m4a", "MKA", "aac", "ts", "mov"} {
		if err := CheckExt(ext); err != nil {
			t.Errorf("CheckExt(%q): %v", ext, err)
		}
	}
	for _, ext := range []string{"mp3", "opus", "ogg", "flac", ""} {
		if err := CheckExt(ext); !errors.Is(err, ErrUnsupportedExt) {
			t.Errorf("CheckExt(%q) = %v, want ErrUnsupportedExt", ext, err)
		}
	}
}

func TestConcatCopy_unsupported_ext_skips_tool(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	tool := writeTool(t, `touch "`+marker+`"`)
	dir, pl := writeLocalPlaylist(t, "seg1.aac")

	err := NewFFmpeg(tool, "mp3", nil).ConcatCopy(context.Background(), pl, filepath.Join(dir, "out.mp3.part"))
	var re *RemuxError
	if !errors.As(err, &re) || !errors.Is(err, ErrUnsupportedExt) {
		t.Errorf("expected RemuxError wrapping ErrUnsupportedExt, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("ffmpeg should not run for an unsupported extension")
	}
}
