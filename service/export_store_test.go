package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"nvr-orchestrator/pkg/apperror"
)

func TestFSExportStore_Open(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "exp1.mp4"), []byte("export bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewFSExportStore(dir)

	video, err := store.Open(context.Background(), "exp1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer video.Body.Close()

	data, _ := io.ReadAll(video.Body)
	if string(data) != "export bytes" || video.Size != int64(len(data)) || video.Name != "exp1.mp4" {
		t.Fatalf("video = %+v, data = %q", video, data)
	}
}

func TestFSExportStore_Missing(t *testing.T) {
	store := NewFSExportStore(t.TempDir())

	_, err := store.Open(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestFSExportStore_RejectsTraversal(t *testing.T) {
	store := NewFSExportStore(t.TempDir())

	for _, id := range []string{"", "../secret", "a/b", `a\b`} {
		if _, err := store.Open(context.Background(), id); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("Open(%q) err = %v, want validation", id, err)
		}
	}
}

func TestFootageService_ExportVideo(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "exp2.mp4"), []byte("x"), 0o644)
	svc := NewFootageService(nil, NewFSExportStore(dir))

	video, err := svc.ExportVideo(context.Background(), "exp2")
	if err != nil {
		t.Fatal(err)
	}
	video.Body.Close()

	if _, err := svc.ExportVideo(context.Background(), "exp3"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
