package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/recorder"
)

type AudioConfig struct {
	Backend     string        `mapstructure:"backend" yaml:"backend"`
	Device      string        `mapstructure:"device" yaml:"device"`
	SampleRate  int           `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int           `mapstructure:"channels" yaml:"channels"`
	Format      string        `mapstructure:"format" yaml:"format"`
	ChunkFrames int           `mapstructure:"chunk_frames" yaml:"chunk_frames"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

type OutputConfig struct {
	Directory        string `mapstructure:"directory" yaml:"directory"`
	ScratchDirectory string `mapstructure:"scratch_directory" yaml:"scratch_directory"`
}

type RecorderConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout" yaml:"join_timeout"`
	BridgeCapacity int           `mapstructure:"bridge_capacity" yaml:"bridge_capacity"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type Config struct {
	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// RootConfig is the file layout: base settings plus named profiles that
// override them
type RootConfig struct {
	ActiveConfig string             `mapstructure:"active_config" yaml:"active_config"`
	Config       `mapstructure:",squash" yaml:",inline"`
	Configs      map[string]*Config `mapstructure:"configs" yaml:"configs,omitempty"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		Backend:     "auto",
		ChunkFrames: audio.DefaultChunkFrames,
	},
	Output: OutputConfig{
		Directory: ".",
	},
	Recorder: RecorderConfig{
		PollInterval:   recorder.DefaultPollInterval,
		JoinTimeout:    recorder.DefaultJoinTimeout,
		BridgeCapacity: audio.DefaultBridgeCapacity,
	},
	Server: ServerConfig{
		Port: 8080,
	},
}

// fallbackFormat is used by backends that cannot ask the device for its mix
// format
var fallbackFormat = audio.Format{SampleRate: 48000, Channels: 2, Encoding: audio.EncodingInt16}

// Default returns a copy of the built-in configuration
func Default() *Config {
	c := defaultConfig
	return &c
}

// DefaultConfigFile returns the path used when --config is not given
func DefaultConfigFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "wavrec", "config.yaml")
	}
	return ""
}

// Load reads configFile without selecting a profile
func Load(configFile string) (*Config, error) {
	return LoadWithProfile(configFile, "")
}

// LoadWithProfile reads configFile, applies WAVREC_* environment overrides and
// merges the selected profile over the base settings. An empty configFile
// falls back to DefaultConfigFile, which may be absent.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAVREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := configFile != ""
	if !explicit {
		configFile = DefaultConfigFile()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
			}
		}
	}

	var root RootConfig
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := root.Config

	configName := profile
	if configName == "" {
		configName = root.ActiveConfig
	}
	if configName != "" {
		selected, exists := root.Configs[configName]
		if !exists || selected == nil {
			return nil, fmt.Errorf("configuration profile '%s' not found", configName)
		}
		cfg = *mergeConfigs(&cfg, selected)
	}

	cfg.Output.Directory = expandPath(cfg.Output.Directory)
	cfg.Output.ScratchDirectory = expandPath(cfg.Output.ScratchDirectory)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("active_config", "")
	v.SetDefault("audio.backend", defaultConfig.Audio.Backend)
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_rate", 0)
	v.SetDefault("audio.channels", 0)
	v.SetDefault("audio.format", "")
	v.SetDefault("audio.chunk_frames", defaultConfig.Audio.ChunkFrames)
	v.SetDefault("audio.idle_timeout", time.Duration(0))
	v.SetDefault("output.directory", defaultConfig.Output.Directory)
	v.SetDefault("output.scratch_directory", "")
	v.SetDefault("recorder.poll_interval", defaultConfig.Recorder.PollInterval)
	v.SetDefault("recorder.join_timeout", defaultConfig.Recorder.JoinTimeout)
	v.SetDefault("recorder.bridge_capacity", defaultConfig.Recorder.BridgeCapacity)
	v.SetDefault("server.port", defaultConfig.Server.Port)
}

// mergeConfigs overlays the non-zero fields of profile on base
func mergeConfigs(base, profile *Config) *Config {
	result := *base

	if profile.Audio.Backend != "" {
		result.Audio.Backend = profile.Audio.Backend
	}
	if profile.Audio.Device != "" {
		result.Audio.Device = profile.Audio.Device
	}
	if profile.Audio.SampleRate != 0 {
		result.Audio.SampleRate = profile.Audio.SampleRate
	}
	if profile.Audio.Channels != 0 {
		result.Audio.Channels = profile.Audio.Channels
	}
	if profile.Audio.Format != "" {
		result.Audio.Format = profile.Audio.Format
	}
	if profile.Audio.ChunkFrames != 0 {
		result.Audio.ChunkFrames = profile.Audio.ChunkFrames
	}
	if profile.Audio.IdleTimeout != 0 {
		result.Audio.IdleTimeout = profile.Audio.IdleTimeout
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
	}
	if profile.Output.ScratchDirectory != "" {
		result.Output.ScratchDirectory = profile.Output.ScratchDirectory
	}

	if profile.Recorder.PollInterval != 0 {
		result.Recorder.PollInterval = profile.Recorder.PollInterval
	}
	if profile.Recorder.JoinTimeout != 0 {
		result.Recorder.JoinTimeout = profile.Recorder.JoinTimeout
	}
	if profile.Recorder.BridgeCapacity != 0 {
		result.Recorder.BridgeCapacity = profile.Recorder.BridgeCapacity
	}

	if profile.Server.Port != 0 {
		result.Server.Port = profile.Server.Port
	}

	return &result
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Validate checks every field that has a restricted range
func (c *Config) Validate() error {
	if err := validateAudio(&c.Audio); err != nil {
		return err
	}
	if c.Recorder.PollInterval <= 0 {
		return fmt.Errorf("recorder.poll_interval must be positive, got %s", c.Recorder.PollInterval)
	}
	if c.Recorder.JoinTimeout <= 0 {
		return fmt.Errorf("recorder.join_timeout must be positive, got %s", c.Recorder.JoinTimeout)
	}
	if c.Recorder.BridgeCapacity < 1 {
		return fmt.Errorf("recorder.bridge_capacity must be at least 1, got %d", c.Recorder.BridgeCapacity)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func validateAudio(a *AudioConfig) error {
	switch strings.ToLower(a.Backend) {
	case "", "auto", "malgo", "pipewire", "tone":
	default:
		return fmt.Errorf("audio.backend: unknown backend %q (must be auto, malgo, pipewire or tone)", a.Backend)
	}
	if a.SampleRate != 0 && (a.SampleRate < 8000 || a.SampleRate > 384000) {
		return fmt.Errorf("audio.sample_rate must be between 8000 and 384000, got %d", a.SampleRate)
	}
	if a.Channels < 0 || a.Channels > 255 {
		return fmt.Errorf("audio.channels must be between 0 and 255 (0 = device default), got %d", a.Channels)
	}
	if _, err := audio.ParseEncoding(a.Format); err != nil {
		return fmt.Errorf("audio.format: %w", err)
	}
	if a.ChunkFrames < 1 {
		return fmt.Errorf("audio.chunk_frames must be at least 1, got %d", a.ChunkFrames)
	}
	if a.IdleTimeout < 0 {
		return fmt.Errorf("audio.idle_timeout must not be negative, got %s", a.IdleTimeout)
	}
	return nil
}

// RequestedFormat converts the audio settings into format hints. Zero values
// are left for the device to decide.
func (c *Config) RequestedFormat() (audio.RequestedFormat, error) {
	enc, err := audio.ParseEncoding(c.Audio.Format)
	if err != nil {
		return audio.RequestedFormat{}, err
	}
	return audio.RequestedFormat{
		SampleRate: uint32(c.Audio.SampleRate),
		Channels:   uint8(c.Audio.Channels),
		Encoding:   enc,
	}, nil
}

// BackendConfig returns the settings for audio.NewBackend
func (c *Config) BackendConfig() audio.BackendConfig {
	return audio.BackendConfig{
		Backend:     c.Audio.Backend,
		Device:      c.Audio.Device,
		ChunkFrames: c.Audio.ChunkFrames,
		IdleTimeout: c.Audio.IdleTimeout,
		Default:     fallbackFormat,
	}
}

// RecorderOptions returns the options for a session writing to destination
func (c *Config) RecorderOptions(destination string) (recorder.Options, error) {
	req, err := c.RequestedFormat()
	if err != nil {
		return recorder.Options{}, err
	}
	return recorder.Options{
		Destination:    destination,
		Requested:      req,
		ScratchDir:     c.Output.ScratchDirectory,
		PollInterval:   c.Recorder.PollInterval,
		JoinTimeout:    c.Recorder.JoinTimeout,
		BridgeCapacity: c.Recorder.BridgeCapacity,
	}, nil
}
