package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSongDirCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	layout := NewLayout(root)

	dir, err := layout.SongDir("song-1")
	if err != nil {
		t.Fatalf("SongDir returned error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
	if dir != filepath.Join(root, "song-1") {
		t.Fatalf("got %s, want %s", dir, filepath.Join(root, "song-1"))
	}
}

func TestRelativeAndAbsolutePathRoundTrip(t *testing.T) {
	layout := NewLayout("/library")

	rel := layout.RelativePath("song-1", FileVocals)
	if rel != filepath.Join("song-1", "vocals.mp3") {
		t.Fatalf("unexpected relative path %s", rel)
	}

	abs := layout.AbsolutePath(rel)
	if abs != filepath.Join("/library", "song-1", "vocals.mp3") {
		t.Fatalf("unexpected absolute path %s", abs)
	}
}

func TestThumbnailFileNameDefaultsToJPG(t *testing.T) {
	if ThumbnailFileName("") != "thumbnail.jpg" {
		t.Fatal("expected default extension jpg")
	}
	if ThumbnailFileName("webp") != "thumbnail.webp" {
		t.Fatal("expected extension to be honored")
	}
}
