package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/store"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete meetings past their retention expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		st, err := store.Open(ctx, store.Config{
			Backend:       cfg.Store.Backend,
			DSN:           cfg.StoreDSN(),
			RetentionDays: cfg.Store.RetentionDays,
		})
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.PruneExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d expired meeting(s).\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
