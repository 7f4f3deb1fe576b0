package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/alerts"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running monitor's budgets, progress, and alerts",
	Long:  `Query the running monitor over its control socket and print the latest snapshot.`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		snap, err := newClient().Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			writeJSON(snap)
			return
		}
		printStatus(os.Stdout, snap, time.Now())
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List the running monitor's active alerts",
	Run: func(cmd *cobra.Command, args []string) {
		sevFlag, _ := cmd.Flags().GetString("severity")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		sev, err := alerts.ParseSeverity(sevFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if limit < 0 {
			fmt.Fprintf(os.Stderr, "Error: --limit must not be negative\n")
			os.Exit(1)
		}

		list, err := newClient().Alerts(sev, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			writeJSON(list)
			return
		}
		printAlerts(os.Stdout, list)
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Ask the running monitor to rescan now",
	Run: func(cmd *cobra.Command, args []string) {
		if err := newClient().Rescan(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rescan requested")
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output JSON")
	alertsCmd.Flags().StringP("severity", "s", "", "Only show alerts of this severity (info, warning, critical)")
	alertsCmd.Flags().IntP("limit", "n", 0, "Show at most this many of the newest alerts (0 = all)")
	alertsCmd.Flags().Bool("json", false, "Output JSON")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(rescanCmd)
}

func writeJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
