package cmd

import (
	"fmt"

	"github.com/audiolibrelab/wavrec/internal/play"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play a recording",
	Long: `Play a finished WAV recording with the first available player
(aplay, pw-play, ffplay, mpv or vlc).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Playing: %s\n", args[0])

		if err := play.New(cfg).Play(args[0]); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}
