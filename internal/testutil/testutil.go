// Package testutil provides shared test helpers for gradebooks, inboxes and
// generated MusicXML fixtures.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/cadenza/internal/gradebook"
	"github.com/starford/cadenza/internal/storage"
)

// TestDB creates a temporary gradebook that is automatically cleaned up.
func TestDB(t *testing.T) *gradebook.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "cadenza-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := gradebook.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
