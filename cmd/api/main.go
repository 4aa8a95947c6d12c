package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yigit/unisphere-digest/internal/bootstrap"
	"github.com/yigit/unisphere-digest/internal/pkg/logger"
	"github.com/yigit/unisphere-digest/internal/server"
)

// @title UniSphere Digest API
// @version 1.0
// @description Operator API for the daily community digest
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var configPath string

var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "UniSphere daily digest engine",
	Long: `Builds and emails the daily digest of recent unanswered questions
in the communities each student can see.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.NewServer(cmd.Context(), configPath)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize server")
			return err
		}
		if err := srv.Run(); err != nil {
			logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
			return err
		}
		logger.Info().Msg("Application finished gracefully.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", bootstrap.DefaultConfigPath, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	// serve installs its own signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
