package main

import (
	"fmt"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var (
	verifyProfile    string
	verifyCommonName string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <cert_dir> <connector_name>",
	Short: "Check provisioned artifacts for consistency",
	Long: `Check a provisioned connector directory: certificate subject and validity
window, key and certificate match, keystore contents, and vault properties
against the expected profile. Exits nonzero when any check fails.`,
	Example: `  dsseq verify ./certs/dashboard_connector dashboard_connector
  dsseq verify ./certs/dss_connector dss_connector --profile legacy`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyProfile, "profile", "", "Vault layout profile the directory was provisioned for")
	verifyCmd.Flags().StringVar(&verifyCommonName, "cn", "", "Expected certificate common name (default: the connector name)")
	registerCompletion(verifyCmd, "profile", fixedCompletion("public", "legacy"))
}

func runVerify(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	profile, err := datacellar.ParseProfile(verifyProfile)
	if err != nil {
		return fmt.Errorf("invalid --profile value: %w", err)
	}

	result, err := internal.VerifyDir(&internal.VerifyInput{
		Dir:        args[0],
		Identity:   args[1],
		CommonName: verifyCommonName,
		Profile:    profile,
	})
	if err != nil {
		return err
	}

	fmt.Print(internal.FormatVerifyResult(result))

	if len(result.Errors) > 0 {
		return fmt.Errorf("verification failed")
	}
	return nil
}
