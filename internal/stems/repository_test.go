package stems

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveInput(t *testing.T) {
	repo, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n, err := repo.SaveInput("session-a", strings.NewReader("fake audio bytes"))
	if err != nil {
		t.Fatalf("SaveInput: %v", err)
	}
	if n != int64(len("fake audio bytes")) {
		t.Errorf("wrote %d bytes, want %d", n, len("fake audio bytes"))
	}

	data, err := os.ReadFile(repo.InputPath("session-a"))
	if err != nil {
		t.Fatalf("read back input: %v", err)
	}
	if string(data) != "fake audio bytes" {
		t.Errorf("input content mismatch: %q", data)
	}
}

func TestPathsArePartitionedBySession(t *testing.T) {
	repo, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	a := repo.StemPath("session-a", "vocals")
	b := repo.StemPath("session-b", "vocals")
	if a == b {
		t.Fatalf("two sessions share a stem path: %s", a)
	}
	if filepath.Dir(a) == filepath.Dir(b) {
		t.Fatalf("two sessions share a directory: %s", filepath.Dir(a))
	}
	if !strings.Contains(a, "session-a") {
		t.Errorf("stem path %s does not include its session id", a)
	}
}

func TestNewMixPathIsUnique(t *testing.T) {
	repo, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		abs, rel := repo.NewMixPath("s")
		if seen[abs] {
			t.Fatalf("duplicate mix path: %s", abs)
		}
		seen[abs] = true
		if !strings.HasPrefix(rel, "s"+string(filepath.Separator)) {
			t.Errorf("relative path %s not scoped to session", rel)
		}
		if !strings.HasPrefix(filepath.Base(abs), "final_mix_") {
			t.Errorf("unexpected mix name: %s", filepath.Base(abs))
		}
	}
}

func TestHasStemAndPurge(t *testing.T) {
	repo, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if repo.HasStem("s", "vocals") {
		t.Error("HasStem true before any write")
	}

	if _, err := repo.SaveInput("s", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(repo.StemPath("s", "vocals"), []byte("stem"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !repo.HasStem("s", "vocals") {
		t.Error("HasStem false after write")
	}

	if err := repo.Purge("s"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if repo.HasStem("s", "vocals") {
		t.Error("stem survived purge")
	}
	if _, err := os.Stat(repo.SessionDir("s")); !os.IsNotExist(err) {
		t.Error("session dir survived purge")
	}
}
