package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

// Permission assertions need a known umask. Zero it for the duration
// of the test.
func clearUmask(t *testing.T) {
	t.Helper()
	old := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(old) })
}

func TestRunInit_PopulatesWorkspace(t *testing.T) {
	clearUmask(t)
	dir := t.TempDir()

	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	if fi, err := os.Stat(filepath.Join(dir, "data")); err != nil || !fi.IsDir() {
		t.Errorf("data directory missing (err %v)", err)
	}

	fi, err := os.Stat(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config.yaml missing: %v", err)
	}
	// Bridge tokens and broker passwords may end up in here.
	if mode := fi.Mode().Perm(); mode != 0o600 {
		t.Errorf("config.yaml mode = %o, want 0600", mode)
	}

	for _, want := range []string{"✓", "config.yaml", "ferryd setup"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("init output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunInit_SecondRunLeavesFilesAlone(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	edited := []byte("bridge:\n  base_url: http://mc.lan:8120\n")
	if err := os.WriteFile(cfgPath, edited, 0o600); err != nil {
		t.Fatalf("edit config: %v", err)
	}

	out.Reset()
	if err := runInit(&out, dir); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out.String(), "exists, skipping") {
		t.Errorf("second run should report the skip, got:\n%s", out.String())
	}

	got, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("reread config: %v", err)
	}
	if !bytes.Equal(got, edited) {
		t.Error("second run clobbered an edited config.yaml")
	}
}

func TestWriteIfMissing_AppliesMode(t *testing.T) {
	clearUmask(t)
	dir := t.TempDir()

	for _, mode := range []os.FileMode{0o600, 0o644} {
		path := filepath.Join(dir, fmt.Sprintf("f%o", mode))
		var out bytes.Buffer
		if err := writeIfMissing(&out, path, []byte("contents"), mode); err != nil {
			t.Fatalf("writeIfMissing(%o): %v", mode, err)
		}
		fi, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if got := fi.Mode().Perm(); got != mode {
			t.Errorf("mode = %o, want %o", got, mode)
		}
		if !strings.Contains(out.String(), "✓") {
			t.Errorf("output missing created marker: %q", out.String())
		}
	}
}

func TestWriteIfMissing_KeepsExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kept")
	if err := os.WriteFile(path, []byte("user data"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := writeIfMissing(&out, path, []byte("replacement"), 0o644); err != nil {
		t.Fatalf("writeIfMissing: %v", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "user data" {
		t.Errorf("existing file rewritten to %q", got)
	}
	if !strings.Contains(out.String(), "exists, skipping") {
		t.Errorf("output = %q, want a skip notice", out.String())
	}
}

func TestWriteIfMissing_ReportsCreateFailure(t *testing.T) {
	// A regular file where a directory should be makes OpenFile fail
	// with something other than ErrExist.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := writeIfMissing(&out, filepath.Join(blocker, "child"), []byte("x"), 0o644)
	if err == nil {
		t.Fatal("expected an error creating under a regular file")
	}
	if !strings.Contains(err.Error(), "create") {
		t.Errorf("error = %q, want the create step named", err)
	}
}
