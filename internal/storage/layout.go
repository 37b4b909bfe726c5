// Package storage implements the on-disk layout rules from spec.md §6.3:
// one directory per Song under the library root, with well-known file
// keys. Song.Paths is the source of truth for which files are ready; this
// package only computes the paths, it never infers readiness.
package storage

import (
	"os"
	"path/filepath"
)

// Layout resolves file paths under a library root.
type Layout struct {
	root string
}

func NewLayout(root string) *Layout {
	return &Layout{root: root}
}

// SongDir returns the absolute directory for songID, creating it if
// necessary.
func (l *Layout) SongDir(songID string) (string, error) {
	dir := filepath.Join(l.root, songID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// RelativePath builds the path key stored on Song.Paths for a file named
// fileName under songID's directory.
func (l *Layout) RelativePath(songID, fileName string) string {
	return filepath.Join(songID, fileName)
}

// AbsolutePath resolves a Song.Paths value (itself relative to the
// library root) to an absolute path for serving or writing.
func (l *Layout) AbsolutePath(relativePath string) string {
	return filepath.Join(l.root, relativePath)
}

// Standard file names within a song's directory.
const (
	FileOriginal     = "original.mp3"
	FileVocals       = "vocals.mp3"
	FileInstrumental = "instrumental.mp3"
	FileCover        = "cover.jpg"
)

// ThumbnailFileName returns the expected on-disk name for a thumbnail of
// the given extension ("jpg", "webp", "png").
func ThumbnailFileName(ext string) string {
	if ext == "" {
		ext = "jpg"
	}
	return "thumbnail." + ext
}
