package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/wav"
)

// State represents where a recording session is in its lifecycle
type State string

const (
	StateIdle        State = "IDLE"
	StateNegotiating State = "NEGOTIATING"
	StateRunning     State = "RUNNING"
	StateDraining    State = "DRAINING"
	StateDone        State = "DONE"
	StateAborted     State = "ABORTED"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultJoinTimeout  = 2 * time.Second
)

// Options configures one recording session
type Options struct {
	Destination    string
	Requested      audio.RequestedFormat
	ScratchDir     string
	PollInterval   time.Duration
	JoinTimeout    time.Duration
	BridgeCapacity int
}

// Stats contains information about the current recording session
type Stats struct {
	Destination string       `json:"destination"`
	Format      audio.Format `json:"format"`
	BytesStaged int64        `json:"bytes_staged"`
	Chunks      int          `json:"chunks"`
	StartTime   time.Time    `json:"start_time"`
}

// Duration returns how much audio has been staged
func (s Stats) Duration() time.Duration {
	bps := s.Format.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(float64(s.BytesStaged) / float64(bps) * float64(time.Second))
}

// Recorder drives a single session from negotiation to the committed file
type Recorder struct {
	backend audio.Backend
	opts    Options

	mu    sync.RWMutex
	state State
	stats Stats
}

// New creates a recorder in the Idle state
func New(backend audio.Backend, opts Options) *Recorder {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	return &Recorder{
		backend: backend,
		opts:    opts,
		state:   StateIdle,
		stats:   Stats{Destination: opts.Destination},
	}
}

// State returns the current lifecycle state
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Stats returns a snapshot of the session counters
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()
	slog.Debug("Recorder state changed", "from", prev, "to", s)
}

// Run records until run is stopped or the source ends, then commits the WAV
// file. It can be called once. A capture failure still commits whatever was
// staged and is then returned.
func (r *Recorder) Run(run *RunState) error {
	if r.State() != StateIdle {
		return fmt.Errorf("recorder already used (state %s)", r.State())
	}

	r.setState(StateNegotiating)
	src, err := r.backend.Open(r.opts.Requested)
	if err != nil {
		r.setState(StateAborted)
		return fmt.Errorf("failed to open %s capture: %w", r.backend.Type(), err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Debug("Failed to close capture source", "error", err)
		}
	}()

	format := src.Format()
	writer, err := wav.OpenStaging(r.opts.Destination, format, r.opts.ScratchDir)
	if err != nil {
		r.setState(StateAborted)
		return err
	}

	r.mu.Lock()
	r.stats.Format = format
	r.stats.StartTime = time.Now()
	r.mu.Unlock()

	slog.Info("Recording started", "destination", r.opts.Destination, "format", format.String(), "backend", r.backend.Type())

	bridge := audio.NewBridge(r.opts.BridgeCapacity)
	captureCtx, cancelCapture := context.WithCancel(context.Background())
	defer cancelCapture()

	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		defer bridge.Close()
		if err := src.Capture(captureCtx, bridge); err != nil {
			slog.Debug("Capture returned", "error", err)
		}
	}()

	r.setState(StateRunning)
	captureErr := r.process(run, bridge, writer, captureDone)

	if errors.Is(captureErr, wav.ErrStaging) {
		cancelCapture()
		r.join(captureDone)
		r.setState(StateAborted)
		return errors.Join(captureErr, writer.Close())
	}

	r.setState(StateDraining)
	cancelCapture()
	joined := r.join(captureDone)

	// In-flight chunks are only worth keeping if the stream ended cleanly
	if captureErr == nil {
		if err := r.drain(bridge, writer); err != nil {
			r.setState(StateAborted)
			return errors.Join(err, writer.Close())
		}
	}
	if !joined {
		slog.Warn("Capture did not stop within timeout", "timeout", r.opts.JoinTimeout)
	}

	commitErr := writer.Commit()
	closeErr := writer.Close()
	if commitErr != nil {
		r.setState(StateAborted)
		return errors.Join(commitErr, closeErr)
	}
	if closeErr != nil {
		slog.Warn("Failed to remove scratch file", "path", writer.ScratchPath(), "error", closeErr)
	}

	r.setState(StateDone)
	stats := r.Stats()
	slog.Info("Recording saved", "destination", writer.Destination(), "bytes", stats.BytesStaged, "duration", stats.Duration().Round(time.Millisecond))

	if captureErr != nil {
		return fmt.Errorf("capture stopped early, saved %d bytes: %w", stats.BytesStaged, captureErr)
	}
	return nil
}

// process is the Running loop. It ends when run is stopped or the source
// finished on its own, and returns the capture error that ended the session
// or a wav.ErrStaging error that aborts it.
func (r *Recorder) process(run *RunState, bridge *audio.Bridge, writer *wav.StagingWriter, captureDone <-chan struct{}) error {
	for run.Running() {
		msg, ok := bridge.ReceiveTimeout(r.opts.PollInterval)
		if !ok && finished(captureDone) && bridge.Len() == 0 {
			slog.Info("Capture stream ended")
			return nil
		}
		for ok {
			switch msg.Kind {
			case audio.MessageError:
				slog.Error("Capture failed", "error", msg.Err)
				run.Stop()
				return msg.Err
			default:
				if err := r.stage(writer, msg.Data); err != nil {
					slog.Error("Failed to stage audio", "error", err)
					return err
				}
			}
			msg, ok = bridge.TryReceive()
		}
	}
	return nil
}

// drain consumes what the source sent while it was being stopped
func (r *Recorder) drain(bridge *audio.Bridge, writer *wav.StagingWriter) error {
	for {
		msg, ok := bridge.TryReceive()
		if !ok {
			return nil
		}
		if msg.Kind == audio.MessageError {
			slog.Debug("Ignoring capture error during drain", "error", msg.Err)
			continue
		}
		if err := r.stage(writer, msg.Data); err != nil {
			return err
		}
	}
}

func (r *Recorder) stage(writer *wav.StagingWriter, chunk []byte) error {
	if err := writer.Write(chunk); err != nil {
		return err
	}
	r.mu.Lock()
	r.stats.BytesStaged = writer.BytesWritten()
	r.stats.Chunks++
	r.mu.Unlock()
	slog.Debug("Staged chunk", "bytes", len(chunk), "total", writer.BytesWritten())
	return nil
}

func finished(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// join waits for the capture goroutine, giving up after JoinTimeout
func (r *Recorder) join(done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-time.After(r.opts.JoinTimeout):
		return false
	}
}
