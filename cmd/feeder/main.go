package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ail-project/ail-feeder-discord/internal/config"
	"github.com/ail-project/ail-feeder-discord/internal/logger"
)

var (
	configPath string
	cfg        config.Config
)

func main() {
	root := &cobra.Command{
		Use:           "ail-feeder-discord",
		Short:         "Feed Discord chat activity into an AIL framework instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath, "path to the feeder config file")

	root.AddCommand(
		newScanCmd(),
		newMonitorCmd(),
		newChatsCmd(),
		newEntityCmd(),
		newJoinCmd(),
		newLeaveCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
