package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestLayout(t *testing.T) Layout {
	t.Helper()
	l, err := NewLayout(t.TempDir(), "space_1", "m4a")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func TestNewLayout_paths(t *testing.T) {
	l, err := NewLayout("/out", "show", ".m4a")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if got := l.ArtifactPath(); got != "/out/show/show.m4a" {
		t.Errorf("ArtifactPath = %q", got)
	}
	if got := l.WorkspaceDir(); got != "/out/show/.temp_chunks" {
		t.Errorf("WorkspaceDir = %q", got)
	}
	if got := l.PartialPath(); got != "/out/show/show.m4a.part" {
		t.Errorf("PartialPath = %q", got)
	}
	if got := l.DirectPath(); got != "/out/show/.show.direct.m4a" {
		t.Errorf("DirectPath = %q", got)
	}
}

func TestNewLayout_rejects_bad_input(t *testing.T) {
	cases := []struct{ root, base, ext string }{
		{"", "a", "m4a"},
		{"/out", "", "m4a"},
		{"/out", "..", "m4a"},
		{"/out", "a/b", "m4a"},
		{"/out", "a", ""},
	}
	for _, c := range cases {
		if _, err := NewLayout(c.root, c.base, c.ext); err == nil {
			t.Errorf("NewLayout(%q, %q, %q) should fail", c.root, c.base, c.ext)
		}
	}
}

func TestAcquire_Release(t *testing.T) {
	l := newTestLayout(t)

	ws, err := Acquire(l)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if info, err := os.Stat(ws.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("workspace not created: %v", err)
	}
	if _, err := ws.WriteFile("local.m3u8", []byte("#EXTM3U\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace should be gone, stat err=%v", err)
	}

	t.Run("idempotent_release", func(t *testing.T) {
		if err := ws.Release(); err != nil {
			t.Errorf("second Release: %v", err)
		}
	})

	t.Run("write_after_release", func(t *testing.T) {
		if _, err := ws.WriteFile("x", nil); err != ErrReleased {
			t.Errorf("expected ErrReleased, got %v", err)
		}
	})
}

func TestAcquire_removes_stale_workspace(t *testing.T) {
	l := newTestLayout(t)
	stale := filepath.Join(l.WorkspaceDir(), "old.aac")
	if err := os.MkdirAll(l.WorkspaceDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := Acquire(l)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer ws.Release()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale segment should have been removed")
	}
}

func TestCommit(t *testing.T) {
	l := newTestLayout(t)
	if err := l.EnsureTargetDir(); err != nil {
		t.Fatal(err)
	}

	t.Run("empty_partial_rejected", func(t *testing.T) {
		if err := os.WriteFile(l.PartialPath(), nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := l.Commit(l.PartialPath()); err == nil {
			t.Error("expected error committing empty file")
		}
		if _, err := os.Stat(l.ArtifactPath()); !os.IsNotExist(err) {
			t.Error("artifact must not exist after rejected commit")
		}
	})

	t.Run("success", func(t *testing.T) {
		if err := os.WriteFile(l.PartialPath(), []byte("audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := l.Commit(l.PartialPath()); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		data, err := os.ReadFile(l.ArtifactPath())
		if err != nil || string(data) != "audio" {
			t.Errorf("artifact content %q, err=%v", data, err)
		}
		if _, err := os.Stat(l.PartialPath()); !os.IsNotExist(err) {
			t.Error("partial should be gone after commit")
		}
	})
}

func TestDiscard_missing_is_ok(t *testing.T) {
	l := newTestLayout(t)
	if err := l.Discard(l.PartialPath(), l.ArtifactPath()); err != nil {
		t.Errorf("Discard of missing files: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"seg1.aac":           "one",
		"seg2.aac?type=live": "two",
		"seg3.aac?a=1?b=2":   "three",
		"local.m3u8":         "#EXTM3U",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	res, err := Sanitize(dir)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if len(res.Renames) != 2 {
		t.Errorf("expected 2 renames, got %+v", res.Renames)
	}
	if len(res.Collisions()) != 0 {
		t.Errorf("unexpected collisions: %+v", res.Collisions())
	}

	want := map[string]string{
		"seg1.aac":   "one",
		"seg2.aac":   "two",
		"seg3.aac":   "three",
		"local.m3u8": "#EXTM3U",
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != len(want) {
		t.Errorf("expected %d files, got %d", len(want), len(entries))
	}
	for name, content := range want {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("missing %s: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s content changed: %q", name, data)
		}
	}
}

func TestSanitize_collision_is_reported(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "seg.aac"), []byte("a"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "seg.aac?v=2"), []byte("b"), 0o644)

	res, err := Sanitize(dir)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if c := res.Collisions(); len(c) != 1 || c[0].To != "seg.aac" {
		t.Errorf("expected one collision on seg.aac, got %+v", c)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "seg.aac"))
	if string(data) != "b" {
		t.Errorf("renamed file should win, got %q", data)
	}
}
