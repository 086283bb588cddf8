package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/store"
	"citizen-card-cli/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal client",
	Long: `Open the interactive terminal client. Logs go to a file while it runs,
citizen-card.log in the cache directory unless log.file is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Log.File == "" {
			if cfg.Log.File, err = store.CachePath("citizen-card.log"); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.Close(closeCtx)
		}()
		a.StartMetrics()
		if err := a.Init(ctx); err != nil {
			return err
		}
		return tui.Run(ctx, a)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
