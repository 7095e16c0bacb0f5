// Command pastelclient drives one credit-pack purchase or one inference
// request against a configured supernode set.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "pastelclient"}
	rootCmd.AddCommand(purchaseCmd())
	rootCmd.AddCommand(inferCmd())
	rootCmd.AddCommand(healthCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
