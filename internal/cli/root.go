// Package cli defines the voxnote command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "voxnote",
	Short:         "Voice-channel meeting recorder with local transcription and notes",
	Long: `voxnote records voice-channel meetings, transcribes them with a local
whisper model, synthesizes structured notes with a local language model, and
keeps the results until their retention expires. No audio or text leaves the
machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultConfigPath(),
		"path to the YAML config file")
}

// Execute runs the command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
