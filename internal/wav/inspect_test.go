package wav

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
)

func TestInspect(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
	}{
		{"int16 stereo", audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingInt16}},
		{"int24 mono", audio.Format{SampleRate: 44100, Channels: 1, Encoding: audio.EncodingInt24}},
		{"float32 stereo", audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingFloat32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "take.wav")
			// one second of silence
			payload := make([]byte, tt.format.BytesPerSecond())
			if err := WriteFile(path, tt.format, payload); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			info, err := Inspect(path)
			if err != nil {
				t.Fatalf("Inspect failed: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format = %v, want %v", info.Format, tt.format)
			}
			if info.PayloadBytes != int64(len(payload)) {
				t.Errorf("PayloadBytes = %d, want %d", info.PayloadBytes, len(payload))
			}
			if info.FileSize != int64(len(payload)+HeaderSize) {
				t.Errorf("FileSize = %d, want %d", info.FileSize, len(payload)+HeaderSize)
			}
			if info.Duration != time.Second {
				t.Errorf("Duration = %v, want 1s", info.Duration)
			}
		})
	}
}

func TestInspect_NotWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("this is not a riff file at all, just some text"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Inspect(path); err == nil {
		t.Error("Expected error for a non-WAV file")
	}
}
