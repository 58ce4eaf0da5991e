package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/config"
	"github.com/LuisMesaGLocation/ser-fur-downloader-storage-service-ia/internal/server"
)

var (
	tokenSubject     string
	tokenPermissions []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for API callers",
	Long:  `Signs a token with auth.jwt_secret (JWT_SECRET). Schedulers send it as "Authorization: Bearer <token>".`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "scheduler", "Token subject")
	tokenCmd.Flags().StringSliceVar(&tokenPermissions, "permission", nil, "Permission to grant (defaults to auth.permission)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	jwtCfg, err := config.NewJWTConfig(cfg.Auth)
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) is not set")
	}

	perms := tokenPermissions
	if len(perms) == 0 && jwtCfg.Permission != "" {
		perms = []string{jwtCfg.Permission}
	}
	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenSubject, perms)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
