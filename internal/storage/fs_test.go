package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempInbox(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempInbox(t)
	content := []byte("<score-partwise/>")
	if err := s.Write("q1/alice.musicxml", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("q1/alice.musicxml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("q1/bob.xml", []byte("<a/>"))
	if err := s.Delete("q1/bob.xml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("q1/bob.xml"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestList_OnlyScoreFiles(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("q1/reference.mxl", []byte("PK"))
	_ = s.Write("q1/alice.musicxml", []byte("<a/>"))
	_ = s.Write("q2/bob.XML", []byte("<b/>"))
	_ = s.Write("q1/question.yaml", []byte("semitones: 2"))
	_ = s.Write("q1/notes.txt", []byte("ignored"))
	_ = s.Write("q1/.hidden.xml", []byte("<h/>"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(items), items)
	}
	for _, it := range items {
		if it.Checksum == "" || it.Size == 0 {
			t.Errorf("incomplete metadata: %+v", it)
		}
	}

	sub, _ := s.List("q2")
	if len(sub) != 1 || sub[0].Path != "q2/bob.XML" {
		t.Errorf("List(q2) = %+v", sub)
	}
}

func TestIsScoreFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.xml": true, "a.MusicXML": true, "a.mxl": true,
		"a.pdf": false, "question.yaml": false, "noext": false,
	} {
		if got := IsScoreFile(name); got != want {
			t.Errorf("IsScoreFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempInbox(t)
	for _, p := range []string{"../../etc/passwd", "../outside.xml", "/etc/shadow"} {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempInbox(t)
	_ = s.Write("q/atomic.xml", []byte("original"))
	if err := s.Write("q/atomic.xml", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("q/atomic.xml")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.Root(), "q", ".cadenza-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "cadenza-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
