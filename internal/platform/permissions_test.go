package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRestrictFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	if err := os.WriteFile(path, []byte("test"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RestrictFile(path); err != nil {
		t.Fatalf("RestrictFile failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != OwnerOnly {
			t.Errorf("permissions = %o, want %o", perm, OwnerOnly)
		}
	}
}

func TestRestrictFile_MissingPath(t *testing.T) {
	if err := RestrictFile(filepath.Join(t.TempDir(), "nope.db")); err != nil {
		t.Errorf("RestrictFile on missing path: %v", err)
	}
	if err := RestrictFile(":memory:"); err != nil {
		t.Errorf("RestrictFile on :memory:: %v", err)
	}
}

func TestRestrictFile_LeavesDirectories(t *testing.T) {
	dir := t.TempDir()
	before, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := RestrictFile(dir); err != nil {
		t.Fatalf("RestrictFile on dir: %v", err)
	}
	after, err := os.Stat(dir)
	if err != nil {
		t.Fatal(err)
	}
	if before.Mode() != after.Mode() {
		t.Errorf("directory mode changed from %v to %v", before.Mode(), after.Mode())
	}
}
