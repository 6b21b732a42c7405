package main

import (
	"github.com/Data-Cellar/dss-sequence-example/internal"
	"github.com/spf13/cobra"
)

var (
	keystoreLegacyCipher bool
	keystoreJKS          bool
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore <cert_dir>",
	Short: "Package key material into keystores",
	Long: `Package the key.pem and cert.pem in a connector directory into a PKCS#12
keystore (cert.pfx) under the datacellar alias and password. Both PEM files
must already exist, see keygen.

--legacy-cipher selects the RC2-based PKCS#12 encoding accepted by Java 8
era keystore loaders. --jks additionally writes a Java keystore (cert.jks).`,
	Example: `  dsseq keystore ./certs/dashboard_connector
  dsseq keystore ./certs/dss_connector --legacy-cipher --jks`,
	Args: cobra.ExactArgs(1),
	RunE: runKeystore,
}

func init() {
	keystoreCmd.Flags().BoolVar(&keystoreLegacyCipher, "legacy-cipher", false, "Use the legacy RC2 PKCS#12 encoding")
	keystoreCmd.Flags().BoolVar(&keystoreJKS, "jks", false, "Also write a Java keystore (cert.jks)")
}

func runKeystore(cmd *cobra.Command, args []string) error {
	internal.SetupLogger(logLevel)

	ca := &internal.LocalCA{LegacyCipher: keystoreLegacyCipher}
	if err := internal.PackageKeystore(ca, args[0]); err != nil {
		return err
	}
	if keystoreJKS {
		return internal.PackageJKS(args[0])
	}
	return nil
}
