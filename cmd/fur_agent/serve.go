package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/app"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/config"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/server"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes POST /furs and the run history endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to server.port / PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	svc, err := app.NewService(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	var runs server.RunStore
	if database := svc.DB(); database != nil {
		runs = database
	}
	return server.New(srvCfg, svc, runs, logger).Start()
}

// serverConfig maps the loaded configuration onto the HTTP server's.
func serverConfig(cfg *config.Config) (server.Config, error) {
	jwtCfg, err := config.NewJWTConfig(cfg.Auth)
	if err != nil {
		return server.Config{}, fmt.Errorf("invalid auth config: %w", err)
	}

	rl := ratelimit.DefaultConfig()
	rl.Enabled = cfg.Server.RateLimit.Enabled
	if cfg.Server.RateLimit.DefaultLimit > 0 {
		rl.DefaultLimit = cfg.Server.RateLimit.DefaultLimit
	}
	if cfg.Server.RateLimit.DefaultWindow > 0 {
		rl.DefaultWindow = cfg.Server.RateLimit.DefaultWindow
	}
	rl.Whitelist = ratelimit.ParseIPList(cfg.Server.RateLimit.Whitelist)
	rl.Blacklist = ratelimit.ParseIPList(cfg.Server.RateLimit.Blacklist)

	return server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimit:    rl,
		JWT:          jwtCfg,
	}, nil
}
