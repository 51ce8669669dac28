package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/config"
	"github.com/audiolibrelab/wavrec/internal/play"
	"github.com/audiolibrelab/wavrec/internal/recorder"
	"github.com/audiolibrelab/wavrec/internal/wav"
)

// ErrNotRecording is returned by StopRecording when no session is active
var ErrNotRecording = errors.New("no active recording")

// ErrAlreadyRecording is returned by StartRecording while a session runs
var ErrAlreadyRecording = errors.New("recording already in progress")

// startTimeout bounds how long StartRecording waits for negotiation
const startTimeout = 10 * time.Second

// Service represents the core wavrec service interface
type Service interface {
	// Recording operations
	StartRecording(name string) error
	StopRecording() error
	GetRecordingStatus() (RecordingStatus, *RecordingSession)

	// Playback operations
	Play(name string) error

	// Configuration operations
	LoadProfile(profile string) error
	GetConfig() *config.Config

	// Information operations
	ListRecordings() ([]RecordingInfo, error)
	GetRecordingInfo(name string) (*wav.Info, error)
	ListDevices() ([]audio.DeviceInfo, error)
	GetLastError() string
}

// RecordingStatus represents the current recording state
type RecordingStatus string

const (
	StatusStandby   RecordingStatus = "STANDBY"
	StatusRecording RecordingStatus = "RECORDING"
	StatusStopping  RecordingStatus = "STOPPING"
	StatusError     RecordingStatus = "ERROR"
)

// RecordingSession contains information about the current or last session
type RecordingSession struct {
	Name        string    `json:"name"`
	OutputFile  string    `json:"output_file"`
	StartTime   time.Time `json:"start_time"`
	Format      string    `json:"format"`
	State       string    `json:"state"`
	BytesStaged int64     `json:"bytes_staged"`
	Duration    string    `json:"duration"`
}

// RecordingInfo contains information about a finished recording file
type RecordingInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	Format       string    `json:"format,omitempty"`
	Duration     string    `json:"duration,omitempty"`
	StreamURL    string    `json:"stream_url"`
	DownloadURL  string    `json:"download_url"`
}

// BackendFactory creates the capture backend for a session
type BackendFactory func(audio.BackendConfig) (audio.Backend, error)

// WavrecService is the main service implementation
type WavrecService struct {
	cfg        *config.Config
	configFile string
	newBackend BackendFactory

	mu     sync.Mutex
	rec    *recorder.Recorder
	run    *recorder.RunState
	name   string
	done   chan struct{}
	result error

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a new wavrec service instance
func New(cfg *config.Config, configFile string) *WavrecService {
	return NewWithBackend(cfg, configFile, audio.NewBackend)
}

// NewWithBackend creates a service that records from backends made by factory
func NewWithBackend(cfg *config.Config, configFile string, factory BackendFactory) *WavrecService {
	return &WavrecService{
		cfg:        cfg,
		configFile: configFile,
		newBackend: factory,
	}
}

// StartRecording starts a session in the background and returns once the
// device has been negotiated
func (s *WavrecService) StartRecording(name string) error {
	slog.Debug("Service.StartRecording called", "name", name)

	s.mu.Lock()
	if s.active() {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}

	s.clearLastError()

	cleanName := recorder.SafeName(name)
	if cleanName == "" {
		cleanName = "recording-" + time.Now().Format("20060102-150405")
	}
	destination := recorder.ResolveDestination(cleanName, s.cfg.Output.Directory)

	rec, err := s.newRecorder(destination)
	if err != nil {
		s.mu.Unlock()
		s.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		return err
	}

	run := recorder.NewRunState()
	done := make(chan struct{})
	s.rec, s.run, s.done, s.name, s.result = rec, run, done, cleanName, nil
	s.mu.Unlock()

	go func() {
		err := rec.Run(run)
		s.mu.Lock()
		s.result = err
		s.mu.Unlock()
		if err != nil {
			s.setLastError(fmt.Sprintf("Recording failed: %v", err))
		}
		close(done)
	}()

	// Surface negotiation failures to the caller
	deadline := time.Now().Add(startTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-done:
			s.mu.Lock()
			err := s.result
			s.mu.Unlock()
			return err
		default:
		}
		state := rec.State()
		if state.Terminal() {
			<-done
			s.mu.Lock()
			err := s.result
			s.mu.Unlock()
			return err
		}
		if state != recorder.StateIdle && state != recorder.StateNegotiating {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (s *WavrecService) newRecorder(destination string) (*recorder.Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return nil, fmt.Errorf("failed to create recordings directory: %w", err)
	}

	backend, err := s.newBackend(s.cfg.BackendConfig())
	if err != nil {
		return nil, err
	}

	opts, err := s.cfg.RecorderOptions(destination)
	if err != nil {
		return nil, err
	}
	return recorder.New(backend, opts), nil
}

// active reports whether a session is still running. Callers hold s.mu.
func (s *WavrecService) active() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// StopRecording stops the current session and waits for the file to be written
func (s *WavrecService) StopRecording() error {
	s.mu.Lock()
	if !s.active() {
		s.mu.Unlock()
		return ErrNotRecording
	}
	run, done := s.run, s.done
	s.mu.Unlock()

	run.Stop()
	<-done

	s.mu.Lock()
	err := s.result
	s.mu.Unlock()

	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return err
	}
	s.clearLastError()
	return nil
}

// GetRecordingStatus returns the current recording status and session info
func (s *WavrecService) GetRecordingStatus() (RecordingStatus, *RecordingSession) {
	s.mu.Lock()
	rec, name := s.rec, s.name
	s.mu.Unlock()

	if rec == nil {
		return StatusStandby, nil
	}

	state := rec.State()
	stats := rec.Stats()
	session := &RecordingSession{
		Name:        name,
		OutputFile:  stats.Destination,
		StartTime:   stats.StartTime,
		State:       string(state),
		BytesStaged: stats.BytesStaged,
		Duration:    stats.Duration().Round(time.Second).String(),
	}
	if stats.Format.SampleRate != 0 {
		session.Format = stats.Format.String()
	}

	switch {
	case state == recorder.StateAborted:
		return StatusError, session
	case state.Terminal():
		return StatusStandby, session
	case state == recorder.StateDraining:
		return StatusStopping, session
	default:
		return StatusRecording, session
	}
}

// Play plays a finished recording
func (s *WavrecService) Play(name string) error {
	return play.New(s.cfg).Play(name)
}

// LoadProfile loads a new configuration profile. It is refused while recording.
func (s *WavrecService) LoadProfile(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active() {
		return ErrAlreadyRecording
	}

	newCfg, err := config.LoadWithProfile(s.configFile, profile)
	if err != nil {
		return fmt.Errorf("failed to load profile '%s': %w", profile, err)
	}
	s.cfg = newCfg
	return nil
}

// GetConfig returns the current configuration
func (s *WavrecService) GetConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ListDevices lists what the configured backend can record
func (s *WavrecService) ListDevices() ([]audio.DeviceInfo, error) {
	backend, err := s.newBackend(s.GetConfig().BackendConfig())
	if err != nil {
		return nil, err
	}
	return backend.Devices()
}

// ListRecordings returns the WAV files in the output directory, newest first
func (s *WavrecService) ListRecordings() ([]RecordingInfo, error) {
	dir := s.GetConfig().Output.Directory

	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RecordingInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	recordings := []RecordingInfo{}
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
			continue
		}
		if strings.ToLower(filepath.Ext(file.Name())) != ".wav" {
			continue
		}

		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		entry := RecordingInfo{
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			StreamURL:    fmt.Sprintf("/api/files/stream/%s", file.Name()),
			DownloadURL:  fmt.Sprintf("/api/files/download/%s", file.Name()),
		}
		if wi, err := wav.Inspect(entry.Path); err == nil {
			entry.Format = wi.Format.String()
			entry.Duration = wi.Duration.Round(time.Second).String()
		} else {
			slog.Debug("Skipping WAV details", "file", file.Name(), "error", err)
		}

		recordings = append(recordings, entry)
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})

	return recordings, nil
}

// GetRecordingInfo inspects one recording in the output directory
func (s *WavrecService) GetRecordingInfo(name string) (*wav.Info, error) {
	clean := recorder.SafeName(name)
	if clean == "" {
		return nil, fmt.Errorf("invalid recording name: %q", name)
	}
	return wav.Inspect(recorder.ResolveDestination(clean, s.GetConfig().Output.Directory))
}

// GetLastError returns the last error message (thread-safe)
func (s *WavrecService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

// setLastError sets the last error message (thread-safe)
func (s *WavrecService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (s *WavrecService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
