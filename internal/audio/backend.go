package audio

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypeMalgo    BackendType = "malgo"
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypeTone     BackendType = "tone"
	BackendTypeAuto     BackendType = "auto"
)

// Source is an opened capture stream with a negotiated format
type Source interface {
	// Format returns the negotiated format. It does not change for the
	// lifetime of the source.
	Format() Format

	// Capture pumps chunks into sink until the stream ends, ctx is cancelled
	// or a read fails. A failed read is reported as exactly one error message,
	// after which Capture returns the same error.
	Capture(ctx context.Context, sink Sink) error

	// Close releases the device
	Close() error
}

// DeviceInfo describes something a backend can record from
type DeviceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Backend defines the interface for audio backend implementations
type Backend interface {
	// Open negotiates a format with the device and prepares a source
	Open(req RequestedFormat) (Source, error)

	// Devices lists what the backend can capture
	Devices() ([]DeviceInfo, error)

	// Type returns the backend type
	Type() BackendType
}

// BackendConfig carries the settings shared by all backends
type BackendConfig struct {
	Backend     string
	Device      string
	ChunkFrames int
	IdleTimeout time.Duration

	// Duration limits how much audio the tone backend produces
	Duration time.Duration

	// Default is used by backends that cannot query the device mix format
	Default Format
}

// NewBackend creates the backend selected by cfg.Backend
func NewBackend(cfg BackendConfig) (Backend, error) {
	backendType, err := determineBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	switch backendType {
	case BackendTypePipeWire:
		return NewPipeWireBackend(cfg), nil
	case BackendTypeTone:
		return NewToneBackend(cfg), nil
	default:
		return NewMalgoBackend(cfg), nil
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "malgo":
		return BackendTypeMalgo, nil
	case "pipewire":
		return BackendTypePipeWire, nil
	case "tone":
		return BackendTypeTone, nil
	default:
		return "", fmt.Errorf("unknown audio backend: %s", name)
	}
}

// GetAvailableBackends returns the backends compiled into this binary
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeMalgo, BackendTypePipeWire, BackendTypeTone}
}
