package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// MalgoBackend captures through miniaudio. On Windows it records the default
// render device in loopback mode; elsewhere it records the default capture
// device, which is usually pointed at a monitor source.
type MalgoBackend struct {
	cfg BackendConfig
}

func NewMalgoBackend(cfg BackendConfig) *MalgoBackend {
	return &MalgoBackend{cfg: cfg}
}

func (b *MalgoBackend) Type() BackendType {
	return BackendTypeMalgo
}

// Devices lists the devices malgo can open for loopback capture
func (b *MalgoBackend) Devices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDeviceInit, err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(listingDeviceType)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			ID:        fmt.Sprintf("%s-%d", listingPrefix, i),
			Name:      info.Name(),
			IsDefault: info.IsDefault > 0,
		})
	}
	return devices, nil
}

// Open initialises the device. Unset fields of req are left to miniaudio,
// which picks the device's native mix format.
func (b *MalgoBackend) Open(req RequestedFormat) (Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrDeviceInit, err)
	}

	src := &malgoSource{
		mctx:        mctx,
		chunkFrames: b.cfg.ChunkFrames,
		idleTimeout: b.cfg.IdleTimeout,
		notify:      make(chan struct{}, 1),
	}

	deviceConfig := malgo.DefaultDeviceConfig(captureDeviceType)
	deviceConfig.Capture.Format = toMalgoFormat(req.Encoding)
	deviceConfig.Capture.Channels = uint32(req.Channels)
	deviceConfig.SampleRate = req.SampleRate

	if b.cfg.Device != "" {
		id, err := findMalgoDevice(mctx, b.cfg.Device)
		if err != nil {
			src.release()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: src.onData,
		Stop: src.onStop,
	}

	dev, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		src.release()
		return nil, fmt.Errorf("%w: failed to initialize device: %v", ErrDeviceInit, err)
	}
	src.device = dev

	format, err := negotiatedMalgoFormat(dev.CaptureFormat(), dev.CaptureChannels(), dev.SampleRate())
	if err != nil {
		src.release()
		return nil, err
	}
	src.format = format

	slog.Debug("Negotiated malgo device format", "format", format.String())
	return src, nil
}

func findMalgoDevice(mctx *malgo.AllocatedContext, name string) (*malgo.DeviceID, error) {
	infos, err := mctx.Devices(listingDeviceType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", ErrDeviceInit, err)
	}

	search := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), search) {
			return &infos[i].ID, nil
		}
	}
	return nil, fmt.Errorf("%w: no device found matching name: %s", ErrDeviceInit, name)
}

func toMalgoFormat(e Encoding) malgo.FormatType {
	switch e {
	case EncodingInt16:
		return malgo.FormatS16
	case EncodingInt24:
		return malgo.FormatS24
	case EncodingInt32:
		return malgo.FormatS32
	case EncodingFloat32:
		return malgo.FormatF32
	default:
		return malgo.FormatUnknown
	}
}

func fromMalgoFormat(f malgo.FormatType) (Encoding, error) {
	switch f {
	case malgo.FormatS16:
		return EncodingInt16, nil
	case malgo.FormatS24:
		return EncodingInt24, nil
	case malgo.FormatS32:
		return EncodingInt32, nil
	case malgo.FormatF32:
		return EncodingFloat32, nil
	default:
		return EncodingUnknown, fmt.Errorf("%w: device sample format %d", ErrUnsupportedFormat, int(f))
	}
}

func negotiatedMalgoFormat(f malgo.FormatType, channels, sampleRate uint32) (Format, error) {
	enc, err := fromMalgoFormat(f)
	if err != nil {
		return Format{}, err
	}
	if channels == 0 || channels > 255 {
		return Format{}, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
	return NewFormat(sampleRate, uint8(channels), enc)
}

// malgoSource buffers whatever the device callback delivers. The callback runs
// on miniaudio's thread and must never block, so it only appends and pokes
// the capture loop.
type malgoSource struct {
	mctx        *malgo.AllocatedContext
	device      *malgo.Device
	format      Format
	chunkFrames int
	idleTimeout time.Duration

	mu      sync.Mutex
	pending []byte

	notify    chan struct{}
	stopping  atomic.Bool
	stopped   atomic.Bool
	closeOnce sync.Once
}

func (s *malgoSource) Format() Format {
	return s.format
}

func (s *malgoSource) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	s.pending = append(s.pending, input...)
	s.mu.Unlock()
	s.poke()
}

func (s *malgoSource) onStop() {
	s.stopped.Store(true)
	s.poke()
}

func (s *malgoSource) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *malgoSource) takePending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	p := s.pending
	s.pending = nil
	return p
}

func (s *malgoSource) Capture(ctx context.Context, sink Sink) error {
	if err := s.device.Start(); err != nil {
		err = fmt.Errorf("%w: failed to start device: %v", ErrCaptureIO, err)
		_ = sink.Send(ctx, ErrorMessage(err))
		return err
	}
	slog.Debug("malgo capture started", "format", s.format.String())

	chunker := NewChunker(s.format, s.chunkFrames)
	lastData := time.Now()

	var idle <-chan time.Time
	if s.idleTimeout > 0 {
		ticker := time.NewTicker(idleCheckInterval(s.idleTimeout))
		defer ticker.Stop()
		idle = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return s.finish(ctx, sink, chunker)

		case <-idle:
			if time.Since(lastData) >= s.idleTimeout {
				slog.Info("No audio received within idle timeout, ending capture", "timeout", s.idleTimeout)
				return s.finish(ctx, sink, chunker)
			}

		case <-s.notify:
			if p := s.takePending(); len(p) > 0 {
				lastData = time.Now()
				chunker.Write(p)
				for chunk, ok := chunker.Next(); ok; chunk, ok = chunker.Next() {
					if err := sink.Send(ctx, DataMessage(chunk)); err != nil {
						return s.finish(ctx, sink, chunker)
					}
				}
			}

			if s.stopped.Load() && !s.stopping.Load() {
				err := fmt.Errorf("%w: device stopped unexpectedly", ErrCaptureIO)
				_ = sink.Send(ctx, ErrorMessage(err))
				return err
			}
		}
	}
}

// finish stops the stream and hands over every complete frame still buffered
func (s *malgoSource) finish(ctx context.Context, sink Sink, chunker *Chunker) error {
	s.stopping.Store(true)
	if err := s.device.Stop(); err != nil {
		slog.Debug("Failed to stop malgo device", "error", err)
	}

	chunker.Write(s.takePending())
	for chunk, ok := chunker.Next(); ok; chunk, ok = chunker.Next() {
		if err := sink.Send(ctx, DataMessage(chunk)); err != nil {
			return nil
		}
	}
	if rest := chunker.Flush(); len(rest) > 0 {
		_ = sink.Send(ctx, DataMessage(rest))
	}
	slog.Debug("malgo capture stopped")
	return nil
}

func (s *malgoSource) Close() error {
	s.release()
	return nil
}

func (s *malgoSource) release() {
	s.closeOnce.Do(func() {
		if s.device != nil {
			s.device.Uninit()
			s.device = nil
		}
		if s.mctx != nil {
			_ = s.mctx.Uninit()
			s.mctx.Free()
			s.mctx = nil
		}
	})
}

// idleCheckInterval polls four times per timeout, but never faster than 1ms
func idleCheckInterval(timeout time.Duration) time.Duration {
	if d := timeout / 4; d >= time.Millisecond {
		return d
	}
	return time.Millisecond
}
