// Command gatewayd boots the Monero payment-to-token gateway: it loads
// configuration, opens storage, prewarms the admission layer, and serves
// the public and internal HTTP APIs alongside the wallet-rpc monitor
// until terminated.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/synnergy-labs/monero-gateway/internal/app"
	"github.com/synnergy-labs/monero-gateway/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{Use: "gatewayd", Short: "Monero payment-to-token gateway"}
	root.PersistentFlags().StringVar(&env, "env", "", "config overlay name (merges config/<env>.yaml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "run the gateway until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			a, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("wire application: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.Telemetry.Log.Info("gatewayd starting")
			err = a.Run(ctx)
			a.Telemetry.Log.Info("gatewayd stopped")
			return err
		},
	}

	root.AddCommand(serve)
	return root
}
