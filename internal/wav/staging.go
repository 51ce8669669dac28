package wav

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/audiolibrelab/wavrec/internal/audio"
)

// ErrStaging wraps failures on the scratch file
var ErrStaging = errors.New("staging failed")

const scratchPrefix = "wavdata-"

// StagingWriter appends raw frames to a scratch file while recording and turns
// them into the destination WAV on Commit. It is owned by one goroutine.
type StagingWriter struct {
	destination string
	format      audio.Format
	scratchPath string
	file        *os.File
	buf         *bufio.Writer
	written     int64
	closed      bool
}

// OpenStaging creates a uniquely named scratch file in scratchDir, or in the
// system temp directory when scratchDir is empty
func OpenStaging(destination string, format audio.Format, scratchDir string) (*StagingWriter, error) {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	scratchPath := filepath.Join(scratchDir, scratchPrefix+uuid.NewString())

	file, err := os.OpenFile(scratchPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create scratch file: %v", ErrStaging, err)
	}

	slog.Debug("Opened scratch file", "path", scratchPath, "destination", destination)
	return &StagingWriter{
		destination: destination,
		format:      format,
		scratchPath: scratchPath,
		file:        file,
		buf:         bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// Write appends chunk verbatim
func (s *StagingWriter) Write(chunk []byte) error {
	if s.closed {
		return fmt.Errorf("%w: write after close", ErrStaging)
	}
	n, err := s.buf.Write(chunk)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaging, err)
	}
	return nil
}

// Commit flushes the scratch file, reads it back and writes the destination
// WAV. Calling it again without further writes produces the same file.
func (s *StagingWriter) Commit() error {
	if s.closed {
		return fmt.Errorf("%w: commit after close", ErrStaging)
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrStaging, err)
	}

	payload, err := os.ReadFile(s.scratchPath)
	if err != nil {
		return fmt.Errorf("%w: read back: %v", ErrStaging, err)
	}

	if err := WriteFile(s.destination, s.format, payload); err != nil {
		return err
	}

	slog.Debug("Committed recording", "destination", s.destination, "payload_bytes", len(payload))
	return nil
}

// Close closes and deletes the scratch file. Further calls do nothing.
func (s *StagingWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	closeErr := s.file.Close()
	removeErr := os.Remove(s.scratchPath)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if err := errors.Join(closeErr, removeErr); err != nil {
		return fmt.Errorf("%w: %v", ErrStaging, err)
	}
	return nil
}

// BytesWritten returns how many payload bytes have been staged
func (s *StagingWriter) BytesWritten() int64 {
	return s.written
}

func (s *StagingWriter) ScratchPath() string {
	return s.scratchPath
}

func (s *StagingWriter) Destination() string {
	return s.destination
}

func (s *StagingWriter) Format() audio.Format {
	return s.format
}
