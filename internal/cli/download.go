package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/models"
)

var downloadDir string

var downloadCmd = &cobra.Command{
	Use:   "download [model...]",
	Short: "Download model weights from HuggingFace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			names := models.Names()
			sort.Strings(names)
			fmt.Println("Available models:")
			for _, name := range names {
				desc, _ := models.Describe(name)
				fmt.Printf("  %-16s %s\n", name, desc)
			}
			fmt.Printf("\nUsage: voxnote download <model> [model...]\n")
			return nil
		}

		for _, name := range args {
			path, err := models.Download(name, downloadDir)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", name, err)
			}
			fmt.Printf("  Installed: %s\n", path)
		}
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadDir, "dir", config.DefaultModelsDir(),
		"directory to store model weights")
	rootCmd.AddCommand(downloadCmd)
}
