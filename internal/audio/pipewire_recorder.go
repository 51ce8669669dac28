package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const pwStopTimeout = 5 * time.Second

// pipeWireSource runs pw-record and reads raw frames from its stdout
type pipeWireSource struct {
	format      Format
	command     string
	args        []string
	chunkFrames int
}

func (s *pipeWireSource) Format() Format {
	return s.format
}

func (s *pipeWireSource) Capture(ctx context.Context, sink Sink) error {
	command := s.command
	if command == "" {
		command = "pw-record"
	}

	cmd := exec.Command(command, s.args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.fail(ctx, sink, fmt.Errorf("%w: %v", ErrCaptureIO, err))
	}
	if err := cmd.Start(); err != nil {
		return s.fail(ctx, sink, fmt.Errorf("%w: failed to start %s: %v", ErrCaptureIO, command, err))
	}
	slog.Debug("pw-record started", "pid", cmd.Process.Pid)

	exited := make(chan struct{})
	go s.stopOnCancel(ctx, cmd, exited)

	chunker := NewChunker(s.format, s.chunkFrames)
	buf := make([]byte, int(s.format.BlockAlign())*max(s.chunkFrames, 1))
	var readErr error

	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunker.Write(buf[:n])
			for chunk, ok := chunker.Next(); ok; chunk, ok = chunker.Next() {
				if sendErr := sink.Send(ctx, DataMessage(chunk)); sendErr != nil {
					// Receiver is gone; let stopOnCancel end the process
					err = sendErr
					break
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				readErr = err
			}
			break
		}
	}

	// Unblock pw-record if we stopped reading before EOF
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()
	close(exited)

	if readErr == nil && waitErr != nil && ctx.Err() == nil {
		readErr = fmt.Errorf("pw-record exited: %v (%s)", waitErr, strings.TrimSpace(stderrBuf.String()))
	}
	if readErr != nil {
		return s.fail(ctx, sink, fmt.Errorf("%w: %v", ErrCaptureIO, readErr))
	}

	if rest := chunker.Flush(); len(rest) > 0 {
		_ = sink.Send(ctx, DataMessage(rest))
	}
	slog.Debug("pw-record stopped")
	return nil
}

// stopOnCancel interrupts pw-record when ctx is done and kills it if it does
// not exit in time
func (s *pipeWireSource) stopOnCancel(ctx context.Context, cmd *exec.Cmd, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	case <-ctx.Done():
	}

	slog.Debug("Sending SIGINT to pw-record")
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		slog.Debug("Failed to interrupt pw-record, killing", "error", err)
		_ = cmd.Process.Kill()
		return
	}

	select {
	case <-exited:
	case <-time.After(pwStopTimeout):
		slog.Warn("pw-record did not exit within timeout, force killing")
		_ = cmd.Process.Kill()
	}
}

func (s *pipeWireSource) fail(ctx context.Context, sink Sink, err error) error {
	_ = sink.Send(ctx, ErrorMessage(err))
	return err
}

// Close is a no-op; the process lives only as long as Capture
func (s *pipeWireSource) Close() error {
	return nil
}
