package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// Artifact file names written into each connector certificate directory.
const (
	KeyFileName   = "key.pem"
	CertFileName  = "cert.pem"
	PfxFileName   = "cert.pfx"
	JKSFileName   = "cert.jks"
	VaultFileName = "vault.properties"
)

// artifactFile pairs an output file name with its content. Sensitive files
// are written 0600, the rest 0644.
type artifactFile struct {
	Name      string
	Data      []byte
	Sensitive bool
}

// writeArtifacts creates dir (with parents) and writes each file with
// appropriate permissions, overwriting existing files.
func writeArtifacts(dir string, files []artifactFile) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating certificate directory %s: %w", dir, err)
	}
	for _, f := range files {
		mode := os.FileMode(0644)
		if f.Sensitive {
			mode = 0600
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name), f.Data, mode); err != nil {
			return fmt.Errorf("writing %s: %w", f.Name, err)
		}
	}
	return nil
}

// WriteKeyMaterial generates a fresh RSA key and self-signed certificate for
// commonName and writes key.pem and cert.pem into dir. Existing files are
// overwritten; a keystore packaged from the previous material no longer
// matches afterwards and must be repackaged.
func WriteKeyMaterial(ca CertificateAuthority, dir, commonName string, bits int) error {
	if commonName == "" {
		return errors.New("common name must not be empty")
	}

	key, err := ca.GenerateKeyPair(bits)
	if err != nil {
		return err
	}
	cert, err := ca.SelfSign(key, commonName)
	if err != nil {
		return err
	}

	keyPEM, err := datacellar.MarshalPrivateKeyToPEM(key)
	if err != nil {
		return err
	}

	err = writeArtifacts(dir, []artifactFile{
		{Name: KeyFileName, Data: []byte(keyPEM), Sensitive: true},
		{Name: CertFileName, Data: []byte(datacellar.CertToPEM(cert))},
	})
	if err != nil {
		return err
	}

	slog.Info("wrote key material", "dir", dir, "cn", commonName)
	return nil
}

// readKeyMaterial loads key.pem and cert.pem back from dir. Later steps
// re-read the PEM files rather than reusing in-memory material so each step
// can run as a separate invocation.
func readKeyMaterial(dir string) (*rsa.PrivateKey, *x509.Certificate, error) {
	keyPEM, err := os.ReadFile(filepath.Join(dir, KeyFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	certPEM, err := os.ReadFile(filepath.Join(dir, CertFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("reading certificate: %w", err)
	}
	key, err := datacellar.ParsePEMRSAPrivateKey(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", KeyFileName, err)
	}
	cert, err := datacellar.ParsePEMCertificate(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", CertFileName, err)
	}
	return key, cert, nil
}

// PackageKeystore reads key.pem and cert.pem from dir and writes cert.pfx
// protected by the fixed keystore password. Both PEM files must already
// exist; nothing is written when either is missing.
func PackageKeystore(ca CertificateAuthority, dir string) error {
	key, cert, err := readKeyMaterial(dir)
	if err != nil {
		return err
	}

	pfxData, err := ca.EncodePKCS12(key, cert, datacellar.KeystorePassword)
	if err != nil {
		return fmt.Errorf("encoding PKCS#12 keystore: %w", err)
	}

	err = writeArtifacts(dir, []artifactFile{{Name: PfxFileName, Data: pfxData, Sensitive: true}})
	if err != nil {
		return err
	}

	slog.Info("packaged keystore", "dir", dir, "file", PfxFileName)
	return nil
}

// PackageJKS reads key.pem and cert.pem from dir and writes cert.jks with
// the key entry under the datacellar alias.
func PackageJKS(dir string) error {
	key, cert, err := readKeyMaterial(dir)
	if err != nil {
		return err
	}

	jksData, err := datacellar.EncodeJKS(key, cert, datacellar.KeystorePassword)
	if err != nil {
		return err
	}

	err = writeArtifacts(dir, []artifactFile{{Name: JKSFileName, Data: jksData, Sensitive: true}})
	if err != nil {
		return err
	}

	slog.Info("packaged keystore", "dir", dir, "file", JKSFileName)
	return nil
}

// WriteVaultProperties reads cert.pem (and under the legacy profile also
// key.pem) from dir and writes vault.properties for the connector identity.
func WriteVaultProperties(dir, identity string, profile datacellar.Profile) error {
	if identity == "" {
		return errors.New("connector identity must not be empty")
	}

	certPEM, err := os.ReadFile(filepath.Join(dir, CertFileName))
	if err != nil {
		return fmt.Errorf("reading certificate: %w", err)
	}
	if _, err := datacellar.ParsePEMCertificate(certPEM); err != nil {
		return fmt.Errorf("parsing %s: %w", CertFileName, err)
	}

	props := &datacellar.VaultProperties{
		PublicKey: datacellar.EscapePEM(string(certPEM)),
		APIKey:    datacellar.APIKeyFor(identity, profile),
	}

	if profile == datacellar.ProfileLegacy {
		keyPEM, err := os.ReadFile(filepath.Join(dir, KeyFileName))
		if err != nil {
			return fmt.Errorf("reading private key: %w", err)
		}
		if _, err := datacellar.ParsePEMRSAPrivateKey(keyPEM); err != nil {
			return fmt.Errorf("parsing %s: %w", KeyFileName, err)
		}
		props.PrivateKey = datacellar.EscapePEM(string(keyPEM))
	}

	err = writeArtifacts(dir, []artifactFile{{Name: VaultFileName, Data: props.Encode(), Sensitive: true}})
	if err != nil {
		return err
	}

	slog.Info("wrote vault properties", "dir", dir, "identity", identity, "profile", profile)
	return nil
}

// ProvisionOptions configures a full provisioning run for one connector.
type ProvisionOptions struct {
	Dir        string
	Identity   string
	CommonName string // defaults to Identity when empty
	Bits       int
	Profile    datacellar.Profile
	JKS        bool
}

// Provision runs the full artifact sequence for one connector: key material,
// PKCS#12 keystore, vault properties, and optionally a JKS keystore. The
// sequence stops at the first failure, leaving earlier artifacts in place.
func Provision(ca CertificateAuthority, opts ProvisionOptions) error {
	if opts.Identity == "" {
		return errors.New("connector identity must not be empty")
	}
	commonName := opts.CommonName
	if commonName == "" {
		commonName = opts.Identity
	}

	if err := WriteKeyMaterial(ca, opts.Dir, commonName, opts.Bits); err != nil {
		return err
	}
	if err := PackageKeystore(ca, opts.Dir); err != nil {
		return err
	}
	if opts.JKS {
		if err := PackageJKS(opts.Dir); err != nil {
			return err
		}
	}
	return WriteVaultProperties(opts.Dir, opts.Identity, opts.Profile)
}
