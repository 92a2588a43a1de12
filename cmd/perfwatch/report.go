package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/pkg/reporting"
	"github.com/spf13/cobra"
)

var (
	reportFormat string
	reportOutput string
	reportHours  int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a performance report",
	Long: `Report runs a full regression analysis over the stored results and
renders it as JSON, CSV, or PDF.`,
	Example: `  perfwatch report --format pdf -o weekly.pdf --hours 168
  perfwatch report --format csv -o trends.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := reporting.ReportFormat(reportFormat)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		window := stats.TimeRange{Start: time.Now().Add(-time.Duration(reportHours) * time.Hour)}
		report, err := rt.framework.RunRegressionAnalysis(context.Background(), window)
		if err != nil {
			return fmt.Errorf("regression analysis: %w", err)
		}

		data, _, err := reporting.Generate(report, format)
		if err != nil {
			return err
		}

		if reportOutput == "" {
			if format == reporting.FormatPDF {
				return fmt.Errorf("PDF output requires a file (use -o)")
			}
			fmt.Print(string(data))
			return nil
		}
		if err := os.WriteFile(reportOutput, data, 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("Report written to %s (%d bytes)\n", reportOutput, len(data))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format (json, csv, pdf)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Output file (stdout for json and csv when omitted)")
	reportCmd.Flags().IntVar(&reportHours, "hours", 168, "Report window in hours")
}
