package main

import (
	"fmt"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var vaultProfile string

var vaultCmd = &cobra.Command{
	Use:   "vault <cert_dir> <connector_name>",
	Short: "Write connector vault properties",
	Long: `Write the vault.properties file for a connector from its cert.pem (and,
under the legacy profile, also key.pem). PEM newlines are escaped so each
property stays on a single line.

The public profile publishes the certificate and the connector's API key;
the legacy profile additionally embeds the private key under the datacellar
property.`,
	Example: `  dsseq vault ./certs/dashboard_connector dashboard_connector
  dsseq vault ./certs/dss_connector dss_connector --profile legacy`,
	Args: cobra.ExactArgs(2),
	RunE: runVault,
}

func init() {
	vaultCmd.Flags().StringVar(&vaultProfile, "profile", "", "Vault layout profile: public or legacy")
	registerCompletion(vaultCmd, "profile", fixedCompletion("public", "legacy"))
}

func runVault(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	profile, err := datacellar.ParseProfile(vaultProfile)
	if err != nil {
		return fmt.Errorf("invalid --profile value: %w", err)
	}

	return internal.WriteVaultProperties(args[0], args[1], profile)
}
