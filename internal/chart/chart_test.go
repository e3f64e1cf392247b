package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/habitping/habitping/internal/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderWritesPNG(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(WithDir(dir))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	entries := []models.MoodEntry{
		{UserID: "u1", Date: "2026-08-20", Value: 3},
		{UserID: "u1", Date: "2026-08-21", Value: 7},
		{UserID: "u1", Date: "2026-08-22", Value: 5},
	}
	path, err := r.Render("u1", entries)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if path != r.Path("u1") {
		t.Errorf("returned path %q, want %q", path, r.Path("u1"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read chart: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("chart file is not a PNG")
	}

	// The temp file must be gone after the rename.
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasSuffix(f.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", f.Name())
		}
	}
}

func TestRenderSingleEntry(t *testing.T) {
	r, err := NewRenderer(WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	path, err := r.Render("u1", []models.MoodEntry{{UserID: "u1", Date: "2026-08-22", Value: 6}})
	if err != nil {
		t.Fatalf("single-entry render failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("chart file missing: %v", err)
	}
}

func TestRenderOverwrites(t *testing.T) {
	r, err := NewRenderer(WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	entries := []models.MoodEntry{
		{UserID: "u1", Date: "2026-08-20", Value: 1},
		{UserID: "u1", Date: "2026-08-21", Value: 2},
	}
	if _, err := r.Render("u1", entries); err != nil {
		t.Fatalf("first render failed: %v", err)
	}
	entries = append(entries, models.MoodEntry{UserID: "u1", Date: "2026-08-22", Value: 9})
	if _, err := r.Render("u1", entries); err != nil {
		t.Fatalf("second render failed: %v", err)
	}
}

func TestRenderErrors(t *testing.T) {
	r, err := NewRenderer(WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	if _, err := r.Render("u1", nil); err == nil {
		t.Error("render with no entries should fail")
	}
	if _, err := r.Render("u1", []models.MoodEntry{{UserID: "u1", Date: "not-a-date", Value: 3}}); err == nil {
		t.Error("render with a bad date should fail")
	}

	if _, err := NewRenderer(); err == nil {
		t.Error("renderer without a directory should fail")
	}
}

func TestPathPerUser(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRenderer(WithDir(dir))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	if got := r.Path("12345"); got != filepath.Join(dir, "mood_12345.png") {
		t.Errorf("Path(12345) = %q", got)
	}
	if r.Path("u1") == r.Path("u2") {
		t.Error("different users must get different chart paths")
	}
}
