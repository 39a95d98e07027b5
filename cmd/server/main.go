// PM Advisor - project-management advice service
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pm-advisor",
		Short:        "Project-management advice service",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				logger.Info("No .env file found, using environment variables")
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logger)
		},
	}

	cmd.AddCommand(newServeCmd(logger))
	cmd.AddCommand(newConversationCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	return cmd
}
