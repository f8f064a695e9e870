// Package storage defines the submissions inbox file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes one stored file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for inbox file operations. Paths are relative
// to the inbox root and use forward slashes.
type Provider interface {
	// List returns metadata for every score file under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

var scoreExtensions = map[string]bool{
	".xml":      true,
	".musicxml": true,
	".mxl":      true,
}

// IsScoreFile reports whether name has a MusicXML or MXL extension.
func IsScoreFile(name string) bool {
	return scoreExtensions[strings.ToLower(filepath.Ext(name))]
}
