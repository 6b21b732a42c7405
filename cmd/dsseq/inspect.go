package main

import (
	"fmt"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var (
	inspectFormat    string
	inspectPasswords []string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Display artifact contents",
	Long:  "Show detailed information about a provisioned artifact: PEM certificates and keys, PKCS#12 and JKS keystores, or vault.properties files.",
	Example: `  dsseq inspect certs/dashboard_connector/cert.pem
  dsseq inspect certs/dashboard_connector/cert.pfx
  dsseq inspect certs/dss_connector/vault.properties --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	inspectCmd.Flags().StringSliceVarP(&inspectPasswords, "password", "p", nil, "Extra keystore passwords to try")
	registerCompletion(inspectCmd, "format", fixedCompletion("text", "json"))
}

func runInspect(cmd *cobra.Command, args []string) error {
	passwords := append(datacellar.DefaultPasswords(), inspectPasswords...)

	results, err := internal.InspectFile(args[0], passwords)
	if err != nil {
		return err
	}

	output, err := internal.FormatInspectResults(results, inspectFormat)
	if err != nil {
		return err
	}

	fmt.Print(output)
	return nil
}
