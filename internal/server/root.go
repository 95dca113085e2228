package server

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "User CRUD server backed by Postgres",
	Long:  `Serves create/read/update/delete for users over a raw TCP protocol or net/http with chi.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	startCmd.Flags().String("transport", "", "override TRANSPORT (raw or http)")
	startCmd.Flags().String("addr", "", "override LISTEN_ADDR")
	startCmd.Flags().Int("workers", 0, "override WORKER_COUNT")
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer(cmd)
	},
}

func startServer(cmd *cobra.Command) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config, err := LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return err
	}
	if err := applyFlags(cmd, config); err != nil {
		logger.Error("invalid flags", "error", err)
		return err
	}

	server, err := NewServer(config, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	return server.Start()
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, config *Config) error {
	flags := cmd.Flags()

	if flags.Changed("transport") {
		config.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("addr") {
		config.ListenAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("workers") {
		config.WorkerCount, _ = flags.GetInt("workers")
	}

	return config.Validate()
}
