package audio

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// PipeWireBackend records sink monitors with pw-record
type PipeWireBackend struct {
	cfg BackendConfig
	pw  *PipeWire
}

func NewPipeWireBackend(cfg BackendConfig) *PipeWireBackend {
	return &PipeWireBackend{cfg: cfg, pw: NewPipeWire()}
}

// Devices returns the sinks that can be recorded
func (p *PipeWireBackend) Devices() ([]DeviceInfo, error) {
	targets, err := p.pw.ListTargets()
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, 0, len(targets))
	for _, target := range targets {
		devices = append(devices, DeviceInfo{
			ID:        target,
			Name:      target,
			IsDefault: target == p.cfg.Device,
		})
	}
	return devices, nil
}

// Open validates the target and fixes the format. PipeWire converts to
// whatever pw-record asks for, so unset fields come from the configured
// default instead of the device.
func (p *PipeWireBackend) Open(req RequestedFormat) (Source, error) {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return nil, fmt.Errorf("%w: pw-record not found: %v", ErrDeviceInit, err)
	}

	format := req.Resolve(p.cfg.Default)
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if err := p.pw.ValidateTarget(p.cfg.Device); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceInit, err)
	}

	args, err := buildRecordArgs(format, p.cfg.Device)
	if err != nil {
		return nil, err
	}

	slog.Debug("Prepared pw-record", "args", args, "format", format.String())
	return &pipeWireSource{
		format:      format,
		args:        args,
		chunkFrames: p.cfg.ChunkFrames,
	}, nil
}

// Type returns the backend type
func (p *PipeWireBackend) Type() BackendType {
	return BackendTypePipeWire
}
