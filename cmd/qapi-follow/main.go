// Command qapi-follow is the bundled chain follower: it connects to one
// node, subscribes to new heads, and renders a live terminal dashboard of
// the chain's position and recently decoded extrinsics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qapi-go/client/internal/config"
	"github.com/qapi-go/client/internal/env"
)

func main() {
	env.Load()

	root := &cobra.Command{
		Use:   "qapi-follow",
		Short: "Follow a Substrate chain's heads and decode extrinsics live",
	}
	root.AddCommand(followCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func followCmd() *cobra.Command {
	var (
		cfgPath           string
		providerOverride  string
		ignoreParseErrors bool
		maxRecent         int
		maxEvents         int
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect and follow new heads until interrupted",
		Long: `Connect loads the configuration file, establishes one WebSocket
connection to the configured provider, and redraws a live dashboard on
every new head until interrupted with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if providerOverride != "" {
				cfg.Provider.URL = providerOverride
			}
			if ignoreParseErrors {
				cfg.Overrides.Metadata.IgnoreParseErrors = true
			}
			return runFollow(cfg, maxRecent, maxEvents)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "qapi.yaml", "Config file path")
	cmd.Flags().StringVar(&providerOverride, "provider", "", "Override the configured provider URL")
	cmd.Flags().BoolVar(&ignoreParseErrors, "ignore-parse-errors", false, "Do not report metadata decode failures to QAPI_DEBUG diagnostics")
	cmd.Flags().IntVar(&maxRecent, "max-recent", 15, "Number of recently decoded extrinsics to keep on screen")
	cmd.Flags().IntVar(&maxEvents, "max-events", 5, "Number of recent events to keep on screen")
	return cmd
}

func newSignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nReceived signal: %v\n", sig)
		cancel()
	}()
	return ctx, cancel
}
