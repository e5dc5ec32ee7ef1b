package fileutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPublishReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "work", "out.mp4")
	dest := filepath.Join(dir, "final", "video_en.mp4")

	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("new video"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Publish(context.Background(), src, dest); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new video" {
		t.Errorf("dest = %q", data)
	}
	for _, leftover := range []string{dest + ".partial", dest + ".lock"} {
		if Exists(leftover) {
			t.Errorf("%s should not remain", leftover)
		}
	}
	if !Exists(src) {
		t.Error("source should be left in place")
	}
}

func TestPublishRejectsEmptySource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.mp4")
	if err := os.WriteFile(src, nil, 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "dest.mp4")

	if err := Publish(context.Background(), src, dest); err == nil {
		t.Fatal("expected error for empty source")
	}
	if Exists(dest) {
		t.Error("destination must not be created")
	}
}

func TestPublishMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := Publish(context.Background(), filepath.Join(dir, "nope"), filepath.Join(dir, "dest")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestNonEmpty(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	empty := filepath.Join(dir, "empty")
	_ = os.WriteFile(full, []byte("x"), 0644)
	_ = os.WriteFile(empty, nil, 0644)

	if !NonEmpty(full) || NonEmpty(empty) || NonEmpty(dir) || NonEmpty(filepath.Join(dir, "missing")) {
		t.Error("NonEmpty returned an unexpected result")
	}
}
