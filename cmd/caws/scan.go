package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/budget"
	"github.com/Paths-Design/coding-agent-working-standard-sub006/internal/monitor"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the project once and print the result",
	Long: `Run a single scan without starting the live monitor. Exits non-zero
when any budget is exceeded, so it can gate CI.`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		m, err := monitor.New(cfg, monitor.Deps{Logger: slog.Default()})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		snap, err := m.ScanOnce(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			writeJSON(snap)
		} else {
			printStatus(os.Stdout, &snap, time.Now())
		}

		if anyExceeded(snap) {
			os.Exit(2)
		}
	},
}

func init() {
	scanCmd.Flags().Bool("json", false, "Output JSON")
	rootCmd.AddCommand(scanCmd)
}

func anyExceeded(snap monitor.StatusSnapshot) bool {
	for _, b := range snap.Budgets {
		if b.Status == budget.StatusExceeded {
			return true
		}
	}
	return false
}
