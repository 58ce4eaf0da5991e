package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/app"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/observability"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [dir]",
	Short: "Publish an existing download tree to object storage",
	Long: `Uploads every file under dir (default: download.path) with the same object keys a run
would use, including the flattened copies. Useful to retry storage after a partial run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	root := cfg.Download.Path
	if len(args) == 1 {
		root = args[0]
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	ctx := context.Background()
	svc, err := app.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	_, keys, err := svc.Upload(ctx, root)
	observability.NewPrinter(cmd.OutOrStdout()).PrintUploads(root, keys)
	return err
}
