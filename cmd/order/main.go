package main

import (
	"fmt"
	"os"

	"github.com/example/freshmart/pkg/config"
	"github.com/example/freshmart/pkg/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "order",
		Short:         "Order commit and inventory reservation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return err
			}
			if logger, err = logging.New(cfg.Log); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/order-config.yaml", "path to the config file")

	root.AddCommand(serveCmd(), migrateCmd(), seedCmd(), auditCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
