package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	toneFrequency = 440.0
	toneAmplitude = 0.25
	toneTick      = 20 * time.Millisecond
)

// ToneBackend produces a sine wave in real time. It needs no audio hardware
// and is used for demos and tests.
type ToneBackend struct {
	cfg BackendConfig
}

func NewToneBackend(cfg BackendConfig) *ToneBackend {
	return &ToneBackend{cfg: cfg}
}

func (b *ToneBackend) Type() BackendType {
	return BackendTypeTone
}

func (b *ToneBackend) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "tone", Name: fmt.Sprintf("%.0f Hz sine", toneFrequency), IsDefault: true}}, nil
}

func (b *ToneBackend) Open(req RequestedFormat) (Source, error) {
	format := req.Resolve(b.cfg.Default)
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return &toneSource{format: format, chunkFrames: b.cfg.ChunkFrames, duration: b.cfg.Duration}, nil
}

type toneSource struct {
	format      Format
	chunkFrames int
	phase       float64

	// duration ends the stream after this much audio; zero runs until cancelled
	duration time.Duration
}

func (s *toneSource) Format() Format {
	return s.format
}

func (s *toneSource) Capture(ctx context.Context, sink Sink) error {
	chunker := NewChunker(s.format, s.chunkFrames)
	ticker := time.NewTicker(toneTick)
	defer ticker.Stop()

	framesPerTick := int(float64(s.format.SampleRate) * toneTick.Seconds())
	if framesPerTick < 1 {
		framesPerTick = 1
	}
	var totalFrames, limit int
	if s.duration > 0 {
		limit = int(float64(s.format.SampleRate) * s.duration.Seconds())
		if limit < 1 {
			limit = 1
		}
	}

	for {
		select {
		case <-ctx.Done():
			return s.flush(ctx, sink, chunker)
		case <-ticker.C:
		}

		frames := framesPerTick
		if limit > 0 && totalFrames+frames > limit {
			frames = limit - totalFrames
		}
		chunker.Write(s.synthesize(frames))
		totalFrames += frames

		for chunk, ok := chunker.Next(); ok; chunk, ok = chunker.Next() {
			if err := sink.Send(ctx, DataMessage(chunk)); err != nil {
				return s.flush(ctx, sink, chunker)
			}
		}

		if limit > 0 && totalFrames >= limit {
			return s.flush(ctx, sink, chunker)
		}
	}
}

func (s *toneSource) flush(ctx context.Context, sink Sink, chunker *Chunker) error {
	if rest := chunker.Flush(); len(rest) > 0 {
		_ = sink.Send(ctx, DataMessage(rest))
	}
	return nil
}

// synthesize renders frames of interleaved little-endian samples
func (s *toneSource) synthesize(frames int) []byte {
	sampleSize := int(s.format.BitDepth() / 8)
	out := make([]byte, frames*int(s.format.BlockAlign()))
	step := 2 * math.Pi * toneFrequency / float64(s.format.SampleRate)

	off := 0
	for i := 0; i < frames; i++ {
		v := toneAmplitude * math.Sin(s.phase)
		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		for ch := 0; ch < int(s.format.Channels); ch++ {
			putSample(out[off:off+sampleSize], s.format.Encoding, v)
			off += sampleSize
		}
	}
	return out
}

// putSample writes v in [-1, 1] using the given encoding
func putSample(b []byte, enc Encoding, v float64) {
	switch enc {
	case EncodingInt16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v*math.MaxInt16)))
	case EncodingInt24:
		x := int32(v * (1<<23 - 1))
		b[0] = byte(x)
		b[1] = byte(x >> 8)
		b[2] = byte(x >> 16)
	case EncodingInt32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v*math.MaxInt32)))
	case EncodingFloat32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

func (s *toneSource) Close() error {
	return nil
}
