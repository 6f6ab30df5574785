package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndLookup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state", "history.json"), true)
	if err != nil {
		t.Fatal(err)
	}
	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	if _, ok := s.Lookup("m1"); ok {
		t.Fatal("empty history found m1")
	}

	saved := filepath.Join(dir, "1.mp3")
	if err := os.WriteFile(saved, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("m1", "http://example.invalid/1.mp3", saved); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("m2", "http://example.invalid/2.mp3", filepath.Join(dir, "gone.mp3")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reopened, _ := Open(s.Path(), true)
	if p, ok := reopened.Lookup("m1"); !ok || p != saved {
		t.Errorf("Lookup(m1) = %q, %v", p, ok)
	}
	if _, ok := reopened.Lookup("m2"); ok {
		t.Error("entry with a deleted file reported as present")
	}

	entries, err := reopened.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].MessageID != "m1" || entries[1].MessageID != "m2" {
		t.Errorf("entries = %+v", entries)
	}

	if err := reopened.Forget("m1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := reopened.Lookup("m1"); ok {
		t.Error("forgotten entry still found")
	}
}

func TestDisabledStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s, err := Open(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record("m1", "u", path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("disabled store wrote a file")
	}
	if entries, _ := s.Entries(); len(entries) != 0 {
		t.Errorf("entries = %v", entries)
	}
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s, _ := Open(path, true)
	if _, err := s.Entries(); err == nil {
		t.Error("corrupt file decoded without error")
	}
	if err := s.Record("m1", "u", "p"); err == nil {
		t.Error("Record overwrote a corrupt file")
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	os.WriteFile(empty, nil, 0644)
	s, _ = Open(empty, true)
	if entries, err := s.Entries(); err != nil || len(entries) != 0 {
		t.Errorf("empty file: %v, %v", entries, err)
	}
}

func TestOpenExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	s, err := Open("~/.local/share/bmchat/history.json", true)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".local", "share", "bmchat", "history.json"); s.Path() != want {
		t.Errorf("path = %q, want %q", s.Path(), want)
	}
	if _, err := Open("", true); err == nil {
		t.Error("enabled store without a path accepted")
	}
}
