package audio

import (
	"context"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestToneSource_FixedDuration(t *testing.T) {
	backend := NewToneBackend(BackendConfig{
		ChunkFrames: 64,
		Duration:    50 * time.Millisecond,
		Default:     Format{SampleRate: 8000, Channels: 2, Encoding: EncodingInt24},
	})

	src, err := backend.Open(RequestedFormat{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	sink := &collectingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Capture(ctx, sink); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	blockAlign := int(src.Format().BlockAlign())
	total := 0
	for _, msg := range sink.msgs {
		if msg.Kind != MessageData {
			t.Fatalf("Unexpected message kind: %v", msg.Kind)
		}
		if len(msg.Data)%blockAlign != 0 {
			t.Errorf("Chunk of %d bytes is not a multiple of %d", len(msg.Data), blockAlign)
		}
		total += len(msg.Data)
	}

	// 50ms at 8kHz
	if want := 400 * blockAlign; total != want {
		t.Errorf("Expected %d bytes, got %d", want, total)
	}
}

func TestToneSource_RequestedFormatWins(t *testing.T) {
	backend := NewToneBackend(BackendConfig{Default: Format{SampleRate: 48000, Channels: 2, Encoding: EncodingInt16}})

	src, err := backend.Open(RequestedFormat{Channels: 1, Encoding: EncodingFloat32})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	want := Format{SampleRate: 48000, Channels: 1, Encoding: EncodingFloat32}
	if src.Format() != want {
		t.Errorf("Format() = %v, want %v", src.Format(), want)
	}
}

func TestPutSample(t *testing.T) {
	b := make([]byte, 4)
	putSample(b, EncodingFloat32, 0.5)
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b)); got != 0.5 {
		t.Errorf("float32 sample = %v, want 0.5", got)
	}

	putSample(b[:2], EncodingInt16, -1)
	if got := int16(binary.LittleEndian.Uint16(b)); got != -math.MaxInt16 {
		t.Errorf("int16 sample = %d, want %d", got, -math.MaxInt16)
	}
}

func TestToneSource_DurationShorterThanOneFrame(t *testing.T) {
	backend := NewToneBackend(BackendConfig{
		ChunkFrames: 64,
		Duration:    10 * time.Microsecond,
		Default:     Format{SampleRate: 48000, Channels: 2, Encoding: EncodingInt16},
	})

	src, err := backend.Open(RequestedFormat{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	sink := &collectingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := src.Capture(ctx, sink); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Capture ran until the context expired instead of ending on its own")
	}

	if got := len(sink.payload()); got != int(src.Format().BlockAlign()) {
		t.Errorf("Expected a single frame, got %d bytes", got)
	}
}
