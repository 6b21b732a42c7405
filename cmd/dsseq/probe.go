package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/Data-Cellar/dss-sequence-example/internal/probe"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	probeEnvFile string
	probeFormat  string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Drive the optimization flow end to end",
	Long: `Submit an energy-optimization request to the dashboard API, wait out the
asynchronous connector hand-off, then check that a DSS job was dispatched
and is queryable with the shared API key.

Every step runs exactly once; a broken deployment fails the probe rather
than being retried. Configuration comes from the environment; --env-file
seeds it from a dotenv file first (existing variables win).`,
	Example: `  dsseq probe
  dsseq probe --env-file .env.local
  PROBE_STRICT=false dsseq probe --format json`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeEnvFile, "env-file", "", "Dotenv file to seed the environment from")
	probeCmd.Flags().StringVar(&probeFormat, "format", "text", "Output format: text or json")
	registerCompletion(probeCmd, "env-file", fileCompletion)
	registerCompletion(probeCmd, "format", fixedCompletion("text", "json"))
}

func runProbe(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	if probeEnvFile != "" {
		if err := godotenv.Load(probeEnvFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", probeEnvFile, err)
		}
	}

	cfg, err := probe.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := probe.New(*cfg).Run(ctx)
	if res != nil {
		if err := probe.FormatResult(os.Stdout, res, probeFormat); err != nil {
			return err
		}
	}
	return runErr
}
