package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/Data-Cellar/dss-sequence-example/internal/probe"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	waitTimeout time.Duration
	waitEnvFile string
)

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the mock services to become healthy",
	Long: `Poll the dashboard and DSS health endpoints until both answer or the
timeout expires. Service URLs come from the same environment variables the
probe reads.`,
	Example: `  dsseq wait
  dsseq wait --timeout 2m`,
	Args: cobra.NoArgs,
	RunE: runWait,
}

func init() {
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", time.Minute, "How long to keep polling before giving up")
	waitCmd.Flags().StringVar(&waitEnvFile, "env-file", "", "Dotenv file to seed the environment from")
	registerCompletion(waitCmd, "env-file", fileCompletion)
}

func runWait(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	if waitEnvFile != "" {
		if err := godotenv.Load(waitEnvFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", waitEnvFile, err)
		}
	}

	cfg, err := probe.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	return probe.WaitHealthy(ctx, cfg.DashboardURL, cfg.DSSURL)
}
