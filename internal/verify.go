package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// VerifyInput names the provisioned directory to check and the identity and
// profile it was provisioned for.
type VerifyInput struct {
	Dir        string
	Identity   string
	CommonName string // defaults to Identity when empty
	Profile    datacellar.Profile
}

// VerifyResult holds the results of the artifact consistency checks for one
// connector directory.
type VerifyResult struct {
	Dir       string   `json:"dir"`
	Subject   string   `json:"subject"`
	NotBefore string   `json:"not_before"`
	NotAfter  string   `json:"not_after"`
	KeyMatch  *bool    `json:"key_match,omitempty"`
	Keystore  *bool    `json:"keystore_ok,omitempty"`
	JKS       *bool    `json:"jks_ok,omitempty"`
	Vault     *bool    `json:"vault_ok,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// VerifyDir checks that the artifacts in a provisioned connector directory
// are mutually consistent: the certificate carries the expected subject and
// validity, the key matches it, the keystore decodes with the fixed password
// to the same material, and the vault properties round-trip to the PEM files
// byte-for-byte. Returns an error only when cert.pem or key.pem cannot be
// read; all other findings accumulate in the result.
func VerifyDir(input *VerifyInput) (*VerifyResult, error) {
	certPEM, err := os.ReadFile(filepath.Join(input.Dir, CertFileName))
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(filepath.Join(input.Dir, KeyFileName))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	cert, err := datacellar.ParsePEMCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", CertFileName, err)
	}
	key, err := datacellar.ParsePEMRSAPrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", KeyFileName, err)
	}

	result := &VerifyResult{
		Dir:       input.Dir,
		Subject:   cert.Subject.String(),
		NotBefore: cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:  cert.NotAfter.UTC().Format(time.RFC3339),
	}

	wantCN := input.CommonName
	if wantCN == "" {
		wantCN = input.Identity
	}
	if wantCN != "" && cert.Subject.CommonName != wantCN {
		result.Errors = append(result.Errors, fmt.Sprintf("subject CN is %q, want %q", cert.Subject.CommonName, wantCN))
	}

	now := time.Now()
	if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
		result.Errors = append(result.Errors, "certificate is not currently valid")
	}
	if got := cert.NotAfter.Sub(cert.NotBefore); got != 365*24*time.Hour {
		result.Errors = append(result.Errors, fmt.Sprintf("validity window is %v, want %v", got, 365*24*time.Hour))
	}

	match, err := datacellar.KeyMatchesCert(key, cert)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("comparing key: %v", err))
	} else {
		result.KeyMatch = &match
		if !match {
			result.Errors = append(result.Errors, "key does not match certificate")
		}
	}

	verifyKeystore(input.Dir, key, cert, result)
	verifyJKS(input.Dir, key, result)
	verifyVault(input, certPEM, keyPEM, result)

	return result, nil
}

// verifyKeystore checks that cert.pfx decodes with the fixed password and
// holds the same key and certificate as the PEM files.
func verifyKeystore(dir string, key *rsa.PrivateKey, cert *x509.Certificate, result *VerifyResult) {
	pfxData, err := os.ReadFile(filepath.Join(dir, PfxFileName))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reading keystore: %v", err))
		return
	}

	pfxKey, pfxCert, _, err := datacellar.DecodePKCS12(pfxData, datacellar.KeystorePassword)
	ok := err == nil
	if err != nil {
		result.Keystore = &ok
		result.Errors = append(result.Errors, fmt.Sprintf("decoding %s: %v", PfxFileName, err))
		return
	}
	if rsaKey, isRSA := pfxKey.(*rsa.PrivateKey); !isRSA || !rsaKey.Equal(key) {
		ok = false
		result.Errors = append(result.Errors, "keystore private key differs from key.pem")
	}
	if !cert.Equal(pfxCert) {
		ok = false
		result.Errors = append(result.Errors, "keystore certificate differs from cert.pem")
	}
	result.Keystore = &ok
}

// verifyJKS checks cert.jks when present. The JKS artifact is optional, so a
// missing file is not a finding.
func verifyJKS(dir string, key *rsa.PrivateKey, result *VerifyResult) {
	jksData, err := os.ReadFile(filepath.Join(dir, JKSFileName))
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reading JKS: %v", err))
		return
	}

	jksKey, _, err := datacellar.DecodeJKS(jksData, datacellar.KeystorePassword)
	ok := err == nil
	if err != nil {
		result.JKS = &ok
		result.Errors = append(result.Errors, fmt.Sprintf("decoding %s: %v", JKSFileName, err))
		return
	}
	if rsaKey, isRSA := jksKey.(*rsa.PrivateKey); !isRSA || !rsaKey.Equal(key) {
		ok = false
		result.Errors = append(result.Errors, "JKS private key differs from key.pem")
	}
	result.JKS = &ok
}

// verifyVault checks that vault.properties parses and that its escaped PEM
// values reproduce the on-disk PEM files byte-for-byte.
func verifyVault(input *VerifyInput, certPEM, keyPEM []byte, result *VerifyResult) {
	vaultData, err := os.ReadFile(filepath.Join(input.Dir, VaultFileName))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reading vault properties: %v", err))
		return
	}

	props, err := datacellar.ParseVaultProperties(vaultData)
	ok := err == nil
	if err != nil {
		result.Vault = &ok
		result.Errors = append(result.Errors, fmt.Sprintf("parsing %s: %v", VaultFileName, err))
		return
	}

	if datacellar.UnescapePEM(props.PublicKey) != string(certPEM) {
		ok = false
		result.Errors = append(result.Errors, "vault publickey does not reproduce cert.pem")
	}
	if want := datacellar.APIKeyFor(input.Identity, input.Profile); props.APIKey != want {
		ok = false
		result.Errors = append(result.Errors, fmt.Sprintf("vault apikey is %q, want %q", props.APIKey, want))
	}
	switch input.Profile {
	case datacellar.ProfileLegacy:
		if props.PrivateKey == "" {
			ok = false
			result.Errors = append(result.Errors, "vault is missing the datacellar private key entry")
		} else if datacellar.UnescapePEM(props.PrivateKey) != string(keyPEM) {
			ok = false
			result.Errors = append(result.Errors, "vault datacellar entry does not reproduce key.pem")
		}
	default:
		if props.PrivateKey != "" {
			ok = false
			result.Errors = append(result.Errors, "vault carries a private key entry outside the legacy profile")
		}
	}
	result.Vault = &ok
}

// FormatVerifyResult formats a verify result as human-readable text.
func FormatVerifyResult(r *VerifyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Directory: %s\n", r.Dir)
	fmt.Fprintf(&sb, "    Subject: %s\n", r.Subject)
	fmt.Fprintf(&sb, " Not Before: %s\n", r.NotBefore)
	fmt.Fprintf(&sb, "  Not After: %s\n", r.NotAfter)

	status := func(v *bool) string {
		switch {
		case v == nil:
			return "SKIPPED"
		case *v:
			return "OK"
		default:
			return "FAILED"
		}
	}
	fmt.Fprintf(&sb, "  Key Match: %s\n", status(r.KeyMatch))
	fmt.Fprintf(&sb, "   Keystore: %s\n", status(r.Keystore))
	if r.JKS != nil {
		fmt.Fprintf(&sb, "        JKS: %s\n", status(r.JKS))
	}
	fmt.Fprintf(&sb, "      Vault: %s\n", status(r.Vault))

	if len(r.Errors) > 0 {
		sb.WriteString("\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
		fmt.Fprintf(&sb, "\nVerification FAILED (%d error(s))\n", len(r.Errors))
	} else {
		sb.WriteString("\nVerification OK\n")
	}
	return sb.String()
}
