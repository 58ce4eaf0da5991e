package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/app"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/observability"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/pipeline"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/schemas"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Download FURs for one case file or a request file",
	Long: `Runs a download without the HTTP server.

Either pass --request with a JSON body as accepted by POST /furs, or describe a
single case file with --tax-id and --case. Flags override values from the file.`,
	RunE: runDownloadCmd,
}

var (
	runRequestPath string
	runSection     string
	runTaxID       string
	runCaseNumber  string
	runYear        int
	runQuarters    []int
	runFromDB      bool
	runNitFrom     int64
	runNitTo       int64
	runToken       string
	runJSON        bool
	runVerbose     bool
)

func init() {
	runCommand.Flags().StringVarP(&runRequestPath, "request", "r", "", "Path to a request JSON file")
	runCommand.Flags().StringVarP(&runSection, "section", "s", "", "Section folder (seccion)")
	runCommand.Flags().StringVar(&runTaxID, "tax-id", "", "Operator tax id (nitOperador)")
	runCommand.Flags().StringVar(&runCaseNumber, "case", "", "Case number (expediente)")
	runCommand.Flags().IntVarP(&runYear, "year", "y", 0, "Year to search")
	runCommand.Flags().IntSliceVarP(&runQuarters, "quarter", "q", nil, "Quarter to search, 1-4 (repeatable)")
	runCommand.Flags().BoolVar(&runFromDB, "from-db", false, "Read case files from the configured source instead")
	runCommand.Flags().Int64Var(&runNitFrom, "nit-from", 0, "Lowest tax id to read with --from-db")
	runCommand.Flags().Int64Var(&runNitTo, "nit-to", 0, "Highest tax id to read with --from-db")
	runCommand.Flags().StringVar(&runToken, "token", "", "SER session token (overrides configured credentials)")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the summary as JSON")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every state change")

	rootCmd.AddCommand(runCommand)
}

func runDownloadCmd(cmd *cobra.Command, _ []string) error {
	req, err := buildRunRequest(cmd)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	svc, err := app.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	var onProgress pipeline.ProgressCallback
	if runVerbose {
		onProgress = func(e pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(out, "[%s] %s -> %s\n", e.CaseFile, e.From, e.State)
		}
	}

	summary, err := svc.Run(ctx, req, onProgress)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	observability.NewPrinter(out).PrintSummary(summary)
	if summary.Failed > 0 && summary.Succeeded == 0 {
		return fmt.Errorf("all %d case files failed", summary.Failed)
	}
	return nil
}

// buildRunRequest merges the request file, if any, with explicitly set flags.
func buildRunRequest(cmd *cobra.Command) (*types.FuresRequest, error) {
	req := &types.FuresRequest{}
	if runRequestPath != "" {
		body, err := os.ReadFile(runRequestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		if err := schemas.ValidateFursRequest(body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, req); err != nil {
			return nil, fmt.Errorf("failed to parse request: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("section") {
		req.Section = runSection
	}
	if flags.Changed("year") {
		req.Year = types.IntPtr(runYear)
	}
	if flags.Changed("token") {
		req.TokenSER = runToken
	}
	if flags.Changed("from-db") {
		req.FromDatabase = runFromDB
	}
	if flags.Changed("nit-from") {
		req.NitFrom = &runNitFrom
	}
	if flags.Changed("nit-to") {
		req.NitTo = &runNitTo
	}
	if flags.Changed("tax-id") || flags.Changed("case") {
		item := types.FuresDataItem{TaxID: runTaxID, CaseNumber: runCaseNumber, Quarters: runQuarters}
		if flags.Changed("year") {
			item.Year = types.IntPtr(runYear)
		}
		req.Data = append(req.Data, item)
	} else if flags.Changed("quarter") {
		for i := range req.Data {
			req.Data[i].Quarters = runQuarters
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}
