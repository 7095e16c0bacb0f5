package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// healthCmd serves the Prometheus metrics registered by the purchase and
// inference engines.
func healthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp()
			if err != nil {
				return err
			}

			srv := a.metrics.StartServer(addr)
			fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s/metrics\n", addr)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			<-ctx.Done()

			return a.metrics.Shutdown(context.Background(), srv)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9100", "listen address for the /metrics endpoint")
	return cmd
}
