package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/audiolibrelab/wavrec/internal/recorder"
	"github.com/audiolibrelab/wavrec/internal/wav"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Show the format and length of a recording",
	Long:  `Read the header of a WAV file and print its format, payload size and duration. Names are resolved against the output directory the same way recording does.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			path = recorder.ResolveDestination(args[0], cfg.Output.Directory)
		}

		info, err := wav.Inspect(path)
		if err != nil {
			return err
		}

		fmt.Printf("=== %s ===\n", info.Path)
		fmt.Printf("format:      %s\n", info.Format)
		fmt.Printf("type_code:   %d\n", info.TypeCode)
		fmt.Printf("bit_depth:   %d\n", info.BitDepth)
		fmt.Printf("block_align: %d\n", info.Format.BlockAlign())
		fmt.Printf("payload:     %d bytes\n", info.PayloadBytes)
		fmt.Printf("file_size:   %d bytes\n", info.FileSize)
		fmt.Printf("duration:    %s\n", info.Duration.Round(time.Millisecond))
		return nil
	},
}
