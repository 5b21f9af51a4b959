package main

import (
	"github.com/spf13/cobra"
)

func statusCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Read live status from the admin surface",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cadence",
		Short: "Show per-group cadence status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out interface{}
			if err := getJSON(*addr, "/cadence/status", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "production",
		Short: "Show the production lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out interface{}
			if err := getJSON(*addr, "/production/status", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "review",
		Short: "Show review router metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out interface{}
			if err := getJSON(*addr, "/review/metrics", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "collections",
		Short: "Show per-group collection readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out interface{}
			if err := getJSON(*addr, "/collections/stats", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})
	return cmd
}
