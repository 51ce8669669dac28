package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/audiolibrelab/wavrec/internal/audio"
	"github.com/audiolibrelab/wavrec/internal/config"
	"github.com/audiolibrelab/wavrec/internal/recorder"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [file]",
	Short: "Record the default output device to a WAV file",
	Long: `Record the audio currently played by the default output device.
Recording stops on Ctrl+C (or after --duration) and the WAV file is written
in one step. A ".wav" extension is added when missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runCfg, err := applyRecordFlags(cmd, cfg)
		if err != nil {
			return err
		}

		destination := recorder.ResolveDestination(args[0], runCfg.Output.Directory)
		if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		backend, err := audio.NewBackend(runCfg.BackendConfig())
		if err != nil {
			return err
		}
		opts, err := runCfg.RecorderOptions(destination)
		if err != nil {
			return err
		}

		rec := recorder.New(backend, opts)
		run := recorder.NewRunState()

		// Handle interruption
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-sigChan:
				slog.Info("Stopping recording...")
				run.Stop()
			case <-done:
			}
		}()

		if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
			timer := time.AfterFunc(d, func() {
				slog.Info("Duration reached, stopping recording", "duration", d)
				run.Stop()
			})
			defer timer.Stop()
		}

		slog.Info("Recording - Press Ctrl+C to stop", "file", destination, "backend", backend.Type())
		if err := rec.Run(run); err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}

		stats := rec.Stats()
		fmt.Printf("Saved %s (%s, %s)\n", destination, stats.Format, stats.Duration().Round(time.Millisecond))
		return nil
	},
}

func addRecordFlags(c *cobra.Command) {
	c.Flags().StringP("format", "f", "", "sample format: int16, int24, int32, float32 (default: device format)")
	c.Flags().IntP("sample-rate", "s", 0, "sample rate in Hz (default: device rate)")
	c.Flags().IntP("channels", "c", 0, "number of channels to capture (default: device channels)")
	c.Flags().String("backend", "", "capture backend: auto, malgo, pipewire, tone (overrides config)")
	c.Flags().String("device", "", "capture device or PipeWire target (overrides config)")
	c.Flags().StringP("output", "o", "", "output directory (overrides config)")
	c.Flags().DurationP("duration", "d", 0, "stop automatically after this long")
}

// applyRecordFlags returns a copy of base with the command line overrides
// applied and validated
func applyRecordFlags(cmd *cobra.Command, base *config.Config) (*config.Config, error) {
	c := *base
	flags := cmd.Flags()

	if v, _ := flags.GetString("format"); v != "" {
		c.Audio.Format = v
	}
	if v, _ := flags.GetInt("sample-rate"); v != 0 {
		c.Audio.SampleRate = v
	}
	if v, _ := flags.GetInt("channels"); v != 0 {
		c.Audio.Channels = v
	}
	if v, _ := flags.GetString("backend"); v != "" {
		c.Audio.Backend = v
	}
	if v, _ := flags.GetString("device"); v != "" {
		c.Audio.Device = v
	}
	if v, _ := flags.GetString("output"); v != "" {
		c.Output.Directory = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return &c, nil
}

func init() {
	addRecordFlags(recordCmd)
}
