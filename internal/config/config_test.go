package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
)

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wavrec-test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

// isolateHome keeps the user's real config file out of the test
func isolateHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolateHome(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.Backend != "auto" {
		t.Errorf("Expected backend auto, got %q", cfg.Audio.Backend)
	}
	if cfg.Audio.ChunkFrames != 4096 {
		t.Errorf("Expected 4096 chunk frames, got %d", cfg.Audio.ChunkFrames)
	}
	if cfg.Recorder.PollInterval != 10*time.Millisecond {
		t.Errorf("Expected 10ms poll interval, got %s", cfg.Recorder.PollInterval)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}

	req, err := cfg.RequestedFormat()
	if err != nil {
		t.Fatal(err)
	}
	if req != (audio.RequestedFormat{}) {
		t.Errorf("Expected an empty request so the device decides, got %+v", req)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolateHome(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for a missing explicit config file")
	}
}

func TestLoad_FileValues(t *testing.T) {
	isolateHome(t)
	path := createTempConfig(t, `
audio:
  backend: pipewire
  device: alsa_output.analog-stereo
  sample_rate: 44100
  channels: 2
  format: float32
  idle_timeout: 30s
output:
  directory: ~/Recordings
recorder:
  poll_interval: 5ms
  bridge_capacity: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Audio.Backend != "pipewire" || cfg.Audio.Device != "alsa_output.analog-stereo" {
		t.Errorf("Unexpected audio config: %+v", cfg.Audio)
	}
	if cfg.Audio.IdleTimeout != 30*time.Second {
		t.Errorf("Expected 30s idle timeout, got %s", cfg.Audio.IdleTimeout)
	}
	if cfg.Recorder.PollInterval != 5*time.Millisecond {
		t.Errorf("Expected 5ms poll interval, got %s", cfg.Recorder.PollInterval)
	}
	if cfg.Recorder.JoinTimeout != 2*time.Second {
		t.Errorf("Expected default join timeout, got %s", cfg.Recorder.JoinTimeout)
	}

	home, _ := os.UserHomeDir()
	if cfg.Output.Directory != filepath.Join(home, "Recordings") {
		t.Errorf("Expected expanded output directory, got %s", cfg.Output.Directory)
	}

	req, err := cfg.RequestedFormat()
	if err != nil {
		t.Fatal(err)
	}
	want := audio.RequestedFormat{SampleRate: 44100, Channels: 2, Encoding: audio.EncodingFloat32}
	if req != want {
		t.Errorf("RequestedFormat() = %+v, want %+v", req, want)
	}

	opts, err := cfg.RecorderOptions("take.wav")
	if err != nil {
		t.Fatal(err)
	}
	if opts.Destination != "take.wav" || opts.BridgeCapacity != 16 || opts.Requested != want {
		t.Errorf("Unexpected recorder options: %+v", opts)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolateHome(t)
	path := createTempConfig(t, "audio:\n  backend: pipewire\n")

	t.Setenv("WAVREC_AUDIO_BACKEND", "tone")
	t.Setenv("WAVREC_RECORDER_JOIN_TIMEOUT", "500ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.Backend != "tone" {
		t.Errorf("Expected env to override backend, got %q", cfg.Audio.Backend)
	}
	if cfg.Recorder.JoinTimeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms join timeout, got %s", cfg.Recorder.JoinTimeout)
	}
}

func TestLoadWithProfile(t *testing.T) {
	isolateHome(t)
	path := createTempConfig(t, `
active_config: studio
audio:
  backend: malgo
  format: int16
configs:
  studio:
    audio:
      sample_rate: 96000
      format: int24
  podcast:
    audio:
      channels: 1
    output:
      directory: /tmp/podcast
`)

	cfg, err := LoadWithProfile(path, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.Audio.SampleRate != 96000 || cfg.Audio.Format != "int24" || cfg.Audio.Backend != "malgo" {
		t.Errorf("Active profile not applied: %+v", cfg.Audio)
	}

	cfg, err = LoadWithProfile(path, "podcast")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.Audio.Channels != 1 || cfg.Audio.Format != "int16" || cfg.Output.Directory != "/tmp/podcast" {
		t.Errorf("Explicit profile not applied: %+v", cfg)
	}

	if _, err := LoadWithProfile(path, "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected profile not found error, got: %v", err)
	}
}

func TestMergeConfigs_EmptyProfile(t *testing.T) {
	base := Default()
	base.Audio.SampleRate = 48000

	result := mergeConfigs(base, &Config{})
	if *result != *base {
		t.Errorf("Empty profile should not change anything: %+v", result)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		input    string
		expected string
	}{
		{"~/Audio/wavrec", filepath.Join(homeDir, "Audio", "wavrec")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~", "~"}, // Should not expand bare tilde
	}

	for _, test := range tests {
		result := expandPath(test.input)
		if result != test.expected {
			t.Errorf("expandPath(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "audio.sample_rate"},
		{"device default channels", func(c *Config) { c.Audio.Channels = 0 }, ""},
		{"too many channels", func(c *Config) { c.Audio.Channels = 300 }, "between 0 and 255 (0 = device default)"},
		{"bad format", func(c *Config) { c.Audio.Format = "u8" }, "audio.format"},
		{"zero chunk", func(c *Config) { c.Audio.ChunkFrames = 0 }, "audio.chunk_frames"},
		{"zero poll", func(c *Config) { c.Recorder.PollInterval = 0 }, "recorder.poll_interval"},
		{"zero join", func(c *Config) { c.Recorder.JoinTimeout = 0 }, "recorder.join_timeout"},
		{"zero capacity", func(c *Config) { c.Recorder.BridgeCapacity = 0 }, "recorder.bridge_capacity"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_InvalidFileValue(t *testing.T) {
	isolateHome(t)
	path := createTempConfig(t, "audio:\n  format: mp3\n")

	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestBackendConfig(t *testing.T) {
	cfg := Default()
	cfg.Audio.Backend = "tone"
	cfg.Audio.Device = "speakers"

	bc := cfg.BackendConfig()
	if bc.Backend != "tone" || bc.Device != "speakers" || bc.ChunkFrames != audio.DefaultChunkFrames {
		t.Errorf("Unexpected backend config: %+v", bc)
	}
	if bc.Default.Validate() != nil {
		t.Errorf("Fallback format must be valid: %v", bc.Default)
	}
}
