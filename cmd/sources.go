package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/wavrec/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the devices the configured backend can record from. Use --backend to query another backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backendCfg := cfg.BackendConfig()
		if name, _ := cmd.Flags().GetString("backend"); name != "" {
			backendCfg.Backend = name
		}

		backend, err := audio.NewBackend(backendCfg)
		if err != nil {
			return err
		}
		return listAvailableSources(backend)
	},
}

// listAvailableSources prints the devices of one backend
func listAvailableSources(backend audio.Backend) error {
	fmt.Printf("Audio Sources (%s, %s)\n", backend.Type(), runtime.GOOS)
	fmt.Printf("=======================================\n\n")

	devices, err := backend.Devices()
	if err != nil {
		return fmt.Errorf("failed to list %s sources: %w", backend.Type(), err)
	}

	fmt.Printf("%d found:\n", len(devices))
	for i, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " (default)"
		}
		fmt.Printf("  %d. %s [%s]%s\n", i+1, d.Name, d.ID, marker)
	}

	fmt.Printf("\nAvailable backends:")
	for _, b := range audio.GetAvailableBackends() {
		fmt.Printf(" %s", b)
	}
	fmt.Printf("\nUse the ID or name with --device to pick a source.\n")
	return nil
}

func init() {
	sourcesCmd.Flags().String("backend", "", "backend to query (overrides config)")
}
