package main

import (
	"fmt"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var (
	provisionProfile      string
	provisionBits         int
	provisionJKS          bool
	provisionLegacyCipher bool
	provisionLayoutPath   string
)

var provisionCmd = &cobra.Command{
	Use:   "provision [<cert_dir> <connector_name>]",
	Short: "Provision all connector artifacts in one run",
	Long: `Run the full artifact sequence for a connector: key material, PKCS#12
keystore, optionally a JKS keystore, and vault properties. The sequence
stops at the first failure, leaving earlier artifacts in place.

With --layout, provision every connector declared in a YAML layout file
instead of naming a single directory and connector.`,
	Example: `  dsseq provision ./certs/dashboard_connector dashboard_connector
  dsseq provision ./certs/dss_connector dss_connector --profile legacy --jks
  dsseq provision --layout connectors.yaml`,
	Args: func(cmd *cobra.Command, args []string) error {
		if provisionLayoutPath != "" {
			if len(args) != 0 {
				return fmt.Errorf("--layout does not take positional arguments")
			}
			return nil
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVar(&provisionProfile, "profile", "", "Vault layout profile: public or legacy")
	provisionCmd.Flags().IntVarP(&provisionBits, "bits", "b", datacellar.DefaultRSABits, "RSA key size in bits")
	provisionCmd.Flags().BoolVar(&provisionJKS, "jks", false, "Also write a Java keystore (cert.jks)")
	provisionCmd.Flags().BoolVar(&provisionLegacyCipher, "legacy-cipher", false, "Use the legacy RC2 PKCS#12 encoding")
	provisionCmd.Flags().StringVar(&provisionLayoutPath, "layout", "", "YAML layout file declaring the connectors to provision")

	registerCompletion(provisionCmd, "profile", fixedCompletion("public", "legacy"))
	registerCompletion(provisionCmd, "layout", fileCompletion)
}

func runProvision(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	ca := &internal.LocalCA{LegacyCipher: provisionLegacyCipher}

	if provisionLayoutPath != "" {
		layout, err := internal.LoadLayout(provisionLayoutPath)
		if err != nil {
			return err
		}
		return internal.ProvisionLayout(ca, layout)
	}

	profile, err := datacellar.ParseProfile(provisionProfile)
	if err != nil {
		return fmt.Errorf("invalid --profile value: %w", err)
	}

	return internal.Provision(ca, internal.ProvisionOptions{
		Dir:      args[0],
		Identity: args[1],
		Bits:     provisionBits,
		Profile:  profile,
		JKS:      provisionJKS,
	})
}
