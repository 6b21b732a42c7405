package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "dsseq",
	Short: "Data Cellar connector provisioning and DSS flow tool",
	Long:  "Provision connector key material, keystores, and vault properties, serve the mock dashboard and DSS services, and probe the end-to-end energy optimization flow.",
}

// normalizeFlagName accepts snake_case spellings of flag names, matching the
// env var names the probe reads.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(keystoreCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(waitCmd)
}
