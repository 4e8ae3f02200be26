package local

import (
	"context"
	"io"
	"strings"
	"testing"

	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/storage"
)

func TestLocalStorageLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Upload(ctx, "artifacts/a.wav", strings.NewReader("hello")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Upload(ctx, "artifacts/b.wav", strings.NewReader("world!")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "artifacts/a.wav")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}

	files, err := s.List(ctx, "artifacts/")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0].Path != "artifacts/a.wav" || files[1].Size != 6 {
		t.Fatalf("unexpected listing %+v", files)
	}

	if err := s.Delete(ctx, "artifacts/a.wav"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "artifacts/a.wav"); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if ok, _ := s.Exists(ctx, "artifacts/a.wav"); ok {
		t.Error("expected deleted")
	}
	if _, err := s.Download(ctx, "artifacts/a.wav"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	err = s.Upload(context.Background(), "../escape.wav", strings.NewReader("x"))
	if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestFactoryRegistered(t *testing.T) {
	cfg := storage.Config{Provider: storage.ProviderLocal, Local: storage.LocalConfig{BasePath: t.TempDir()}}
	s, err := storage.New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if _, ok := s.(*Storage); !ok {
		t.Fatalf("unexpected backend %T", s)
	}
}
