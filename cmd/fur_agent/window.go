package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/calendar"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/observability"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Print the business-day search window for a year and quarters",
	RunE:  runWindow,
}

var (
	windowYear     int
	windowQuarters []int
	windowToday    string
)

func init() {
	windowCmd.Flags().IntVarP(&windowYear, "year", "y", 0, "Year (defaults to the current year)")
	windowCmd.Flags().IntSliceVarP(&windowQuarters, "quarter", "q", nil, "Quarter, 1-4 (repeatable)")
	windowCmd.Flags().StringVar(&windowToday, "today", "", "Reference date as YYYY-MM-DD (defaults to today)")
	rootCmd.AddCommand(windowCmd)
}

func runWindow(cmd *cobra.Command, _ []string) error {
	today := time.Now()
	if windowToday != "" {
		t, err := time.Parse(time.DateOnly, windowToday)
		if err != nil {
			return fmt.Errorf("invalid --today: %w", err)
		}
		today = t
	}
	year := windowYear
	if year == 0 {
		year = today.Year()
	}
	for _, q := range windowQuarters {
		if q < 1 || q > 4 {
			return fmt.Errorf("invalid quarter %d: must be between 1 and 4", q)
		}
	}

	w, err := calendar.Window(year, windowQuarters, today)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintWindow(year, windowQuarters, w)
	return nil
}
