package main

import (
	datacellar "github.com/Data-Cellar/dss-sequence-example"
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var keygenBits int

var keygenCmd = &cobra.Command{
	Use:   "keygen <cert_dir> <common_name>",
	Short: "Generate connector key material",
	Long: `Generate an RSA private key and a self-signed certificate for a connector.

The directory is created if missing, parents included. Existing key.pem and
cert.pem files are overwritten without warning, so regeneration is
destructive.`,
	Example: `  dsseq keygen ./certs/dashboard_connector dashboard_connector
  dsseq keygen ./certs/dss_connector dss_connector --bits 4096`,
	Args: cobra.ExactArgs(2),
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().IntVarP(&keygenBits, "bits", "b", datacellar.DefaultRSABits, "RSA key size in bits")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	return internal.WriteKeyMaterial(&internal.LocalCA{}, args[0], args[1], keygenBits)
}
