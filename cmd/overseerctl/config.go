package main

import (
	"github.com/spf13/cobra"
)

type runtimeConfig struct {
	LightThreshold float64 `json:"light_threshold"`
	HeavyThreshold float64 `json:"heavy_threshold"`
	WorkerCount    int     `json:"worker_count"`
}

func configCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or tune the review router's runtime config",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current review router config",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out runtimeConfig
			if err := getJSON(*addr, "/config", &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	})

	var lightThreshold, heavyThreshold float64
	var workerCount int
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Patch the review router's thresholds or worker count",
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := map[string]interface{}{}
			if cmd.Flags().Changed("light-threshold") {
				patch["light_threshold"] = lightThreshold
			}
			if cmd.Flags().Changed("heavy-threshold") {
				patch["heavy_threshold"] = heavyThreshold
			}
			if cmd.Flags().Changed("worker-count") {
				patch["worker_count"] = workerCount
			}

			var out runtimeConfig
			if err := patchJSON(*addr, "/config", patch, &out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	setCmd.Flags().Float64Var(&lightThreshold, "light-threshold", 0, "new light-tier confidence threshold")
	setCmd.Flags().Float64Var(&heavyThreshold, "heavy-threshold", 0, "new heavy-tier confidence threshold")
	setCmd.Flags().IntVar(&workerCount, "worker-count", 0, "new review worker pool size")
	cmd.AddCommand(setCmd)

	return cmd
}
