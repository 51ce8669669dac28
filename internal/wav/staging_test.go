package wav

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStagingWriter_ThreeChunks(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.wav")

	w, err := OpenStaging(dest, stereo16, dir)
	if err != nil {
		t.Fatalf("OpenStaging failed: %v", err)
	}
	defer w.Close()

	chunks := [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}}
	for _, c := range chunks {
		if err := w.Write(c); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if w.BytesWritten() != 12 {
		t.Errorf("Expected 12 bytes staged, got %d", w.BytesWritten())
	}

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	out, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 56 {
		t.Errorf("Expected 56 byte file, got %d", len(out))
	}
	if !bytes.Equal(out[44:], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}) {
		t.Errorf("Unexpected payload: %v", out[44:])
	}
}

func TestStagingWriter_ScratchName(t *testing.T) {
	dir := t.TempDir()

	a, err := OpenStaging(filepath.Join(dir, "a.wav"), stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := OpenStaging(filepath.Join(dir, "b.wav"), stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if !strings.HasPrefix(filepath.Base(a.ScratchPath()), "wavdata-") {
		t.Errorf("Unexpected scratch name: %s", a.ScratchPath())
	}
	if a.ScratchPath() == b.ScratchPath() {
		t.Error("Two writers must not share a scratch file")
	}
}

func TestStagingWriter_CommitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.wav")

	w, err := OpenStaging(dest, stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(dest)

	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(dest)

	if !bytes.Equal(first, second) {
		t.Error("Second commit produced a different file")
	}
}

func TestStagingWriter_EmptyCommit(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "silence.wav")

	w, err := OpenStaging(dest, stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	out, _ := os.ReadFile(dest)
	if len(out) != HeaderSize {
		t.Errorf("Expected header-only file, got %d bytes", len(out))
	}
}

func TestStagingWriter_CloseRemovesScratch(t *testing.T) {
	dir := t.TempDir()

	w, err := OpenStaging(filepath.Join(dir, "out.wav"), stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(w.ScratchPath()); !os.IsNotExist(err) {
		t.Errorf("Scratch file still exists after Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got: %v", err)
	}
	if err := w.Write([]byte{1}); !errors.Is(err, ErrStaging) {
		t.Errorf("Expected ErrStaging on write after close, got: %v", err)
	}
}

func TestStagingWriter_CommitFailureKeepsScratch(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "missing", "out.wav")

	w, err := OpenStaging(dest, stereo16, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	if err := w.Commit(); !errors.Is(err, ErrEncode) {
		t.Errorf("Expected ErrEncode, got: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close after failed commit returned: %v", err)
	}
	if _, err := os.Stat(w.ScratchPath()); !os.IsNotExist(err) {
		t.Error("Scratch file should be removed even after a failed commit")
	}
}

func TestOpenStaging_BadDirectory(t *testing.T) {
	_, err := OpenStaging("out.wav", stereo16, filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrStaging) {
		t.Errorf("Expected ErrStaging, got: %v", err)
	}
}

func TestStagingWriter_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.wav")

	w, err := OpenStaging(dest, stereo16, dir)
	if err != nil {
		t.Fatalf("OpenStaging failed: %v", err)
	}
	if w.Destination() != dest {
		t.Errorf("Expected destination %s, got %s", dest, w.Destination())
	}

	// Larger than the write buffer, so it goes straight to the closed file
	w.file.Close()
	err = w.Write(make([]byte, 70000))
	if !errors.Is(err, ErrStaging) {
		t.Fatalf("Expected ErrStaging, got: %v", err)
	}

	_ = w.Close()
	if _, err := os.Stat(w.ScratchPath()); !os.IsNotExist(err) {
		t.Error("Scratch file should be removed after Close")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("No destination file should exist after a failed write")
	}
}
