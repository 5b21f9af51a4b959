// Command overseerctl is a thin CLI wrapping the admin inspect/mutation
// HTTP surface: cadence status, production lock status, review
// metrics, collection stats, and review config get/set.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:   "overseerctl",
		Short: "Inspect and tune a running overseer instance's admin surface",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8090", "admin server base URL")

	root.AddCommand(statusCmd(&addr))
	root.AddCommand(configCmd(&addr))
	return root
}
