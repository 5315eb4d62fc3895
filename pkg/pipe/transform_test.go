package pipe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ligustah/chase/pkg/pipe"
	"github.com/ligustah/chase/pkg/pool"
)

func writeScratch(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFileTransform(t *testing.T) {
	dir := writeScratch(t, map[string]string{
		"123.webp": "img-bytes",
		"123.json": `{"tag":"x"}`,
	})

	payload, err := pipe.FileTransform(context.Background(), dir, pool.IntID(123), nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	file := payload.(pipe.FilePayload)
	if file.Name != "123.webp" || string(file.Data) != "img-bytes" {
		t.Errorf("payload = %q/%q, want 123.webp/img-bytes", file.Name, file.Data)
	}
}

func TestFileTransformNoDataFile(t *testing.T) {
	dir := writeScratch(t, map[string]string{"123.json": "{}"})
	_, err := pipe.FileTransform(context.Background(), dir, pool.IntID(123), nil)
	if !errors.Is(err, pool.ErrResourceNotFound) {
		t.Errorf("err = %v, want ErrResourceNotFound", err)
	}
}

func TestFileTransformAmbiguous(t *testing.T) {
	dir := writeScratch(t, map[string]string{
		"123.webp": "a",
		"123.png":  "b",
	})
	_, err := pipe.FileTransform(context.Background(), dir, pool.IntID(123), nil)
	if !errors.Is(err, pool.ErrInvalidResourceData) {
		t.Errorf("err = %v, want ErrInvalidResourceData", err)
	}
}

func TestFileWithSidecarTransform(t *testing.T) {
	dir := writeScratch(t, map[string]string{
		"123.webp": "img-bytes",
		"123.json": `{"rating":"safe"}`,
	})

	payload, err := pipe.FileWithSidecarTransform(context.Background(), dir, pool.IntID(123), nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	sp := payload.(pipe.SidecarPayload)
	if sp.File.Name != "123.webp" {
		t.Errorf("file = %q, want 123.webp", sp.File.Name)
	}
	if sp.Meta["rating"] != "safe" {
		t.Errorf("meta = %v, want rating=safe", sp.Meta)
	}
}

func TestFileWithSidecarTransformMissingSidecar(t *testing.T) {
	dir := writeScratch(t, map[string]string{"123.webp": "img"})

	payload, err := pipe.FileWithSidecarTransform(context.Background(), dir, pool.IntID(123), nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if sp := payload.(pipe.SidecarPayload); sp.Meta != nil {
		t.Errorf("meta = %v, want nil", sp.Meta)
	}
}

func TestFileWithSidecarTransformBadSidecar(t *testing.T) {
	dir := writeScratch(t, map[string]string{
		"123.webp": "img",
		"123.json": "not json",
	})
	_, err := pipe.FileWithSidecarTransform(context.Background(), dir, pool.IntID(123), nil)
	if !errors.Is(err, pool.ErrInvalidResourceData) {
		t.Errorf("err = %v, want ErrInvalidResourceData", err)
	}
}

func TestFilesTransform(t *testing.T) {
	dir := writeScratch(t, map[string]string{
		"2.png":  "page-2",
		"1.webp": "page-1",
	})

	payload, err := pipe.FilesTransform(context.Background(), dir, pool.ResourceID("gallery"), nil)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	files := payload.([]pipe.FilePayload)
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].Name != "1.webp" || files[1].Name != "2.png" {
		t.Errorf("order = %q, %q; want sorted by name", files[0].Name, files[1].Name)
	}
}

func TestFilesTransformEmpty(t *testing.T) {
	_, err := pipe.FilesTransform(context.Background(), t.TempDir(), pool.ResourceID("gallery"), nil)
	if !errors.Is(err, pool.ErrResourceNotFound) {
		t.Errorf("err = %v, want ErrResourceNotFound", err)
	}
}
