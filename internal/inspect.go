package internal

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// InspectResult holds the inspection details for one object found in a file.
type InspectResult struct {
	Type       string   `json:"type"`
	Subject    string   `json:"subject,omitempty"`
	Issuer     string   `json:"issuer,omitempty"`
	Serial     string   `json:"serial,omitempty"`
	NotBefore  string   `json:"not_before,omitempty"`
	NotAfter   string   `json:"not_after,omitempty"`
	KeyAlgo    string   `json:"key_algorithm,omitempty"`
	KeySize    string   `json:"key_size,omitempty"`
	SHA256     string   `json:"sha256_fingerprint,omitempty"`
	SigAlg     string   `json:"signature_algorithm,omitempty"`
	KeyType    string   `json:"key_type,omitempty"`
	Properties []string `json:"properties,omitempty"`
	APIKey     string   `json:"apikey,omitempty"`
}

// InspectFile reads an artifact file and returns inspection results for all
// objects found. Detection is content-based: PEM, vault properties, JKS,
// PKCS#7, and finally PKCS#12 tried with each candidate password.
func InspectFile(path string, passwords []string) ([]InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var results []InspectResult
	switch {
	case datacellar.IsPEM(data):
		results = inspectPEMData(data)
	case bytes.Contains(data, []byte(datacellar.PropPublicKey+"=")):
		results = inspectVaultData(data)
	default:
		results = inspectBinaryData(data, passwords)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no certificates, keys, or vault properties found in %s", path)
	}
	return results, nil
}

func inspectPEMData(data []byte) []InspectResult {
	var results []InspectResult

	if certs, err := datacellar.ParsePEMCertificates(data); err == nil {
		for _, cert := range certs {
			results = append(results, inspectCert(cert))
		}
	}
	if key, err := datacellar.ParsePEMPrivateKey(data); err == nil {
		results = append(results, inspectKey(key))
	}

	return results
}

// inspectVaultData reports which properties a vault file carries and expands
// the escaped PEM values back into certificate and key entries.
func inspectVaultData(data []byte) []InspectResult {
	props, err := datacellar.ParseVaultProperties(data)
	if err != nil {
		return nil
	}

	summary := InspectResult{Type: "vault_properties", APIKey: props.APIKey}
	summary.Properties = append(summary.Properties, datacellar.PropPublicKey)
	if props.PrivateKey != "" {
		summary.Properties = append(summary.Properties, datacellar.PropPrivateKey)
	}
	summary.Properties = append(summary.Properties, datacellar.PropAPIKey)
	results := []InspectResult{summary}

	if cert, err := datacellar.ParsePEMCertificate([]byte(datacellar.UnescapePEM(props.PublicKey))); err == nil {
		results = append(results, inspectCert(cert))
	}
	if props.PrivateKey != "" {
		if key, err := datacellar.ParsePEMPrivateKey([]byte(datacellar.UnescapePEM(props.PrivateKey))); err == nil {
			results = append(results, inspectKey(key))
		}
	}
	return results
}

func inspectBinaryData(data []byte, passwords []string) []InspectResult {
	var results []InspectResult

	// JKS carries the magic bytes 0xFEEDFEED
	if len(data) >= 4 && data[0] == 0xFE && data[1] == 0xED && data[2] == 0xFE && data[3] == 0xED {
		for _, password := range passwords {
			key, cert, err := datacellar.DecodeJKS(data, password)
			if err != nil {
				continue
			}
			results = append(results, inspectCert(cert), inspectKey(key))
			return results
		}
		return nil
	}

	// Certs-only PKCS#7 bundles need no password, so try them first.
	if certs, err := datacellar.DecodePKCS7(data); err == nil {
		for _, cert := range certs {
			results = append(results, inspectCert(cert))
		}
		return results
	}

	for _, password := range passwords {
		privKey, leaf, caCerts, err := datacellar.DecodePKCS12(data, password)
		if err != nil {
			continue
		}
		if leaf != nil {
			results = append(results, inspectCert(leaf))
		}
		for _, ca := range caCerts {
			results = append(results, inspectCert(ca))
		}
		if privKey != nil {
			results = append(results, inspectKey(privKey))
		}
		return results
	}

	return results
}

func inspectCert(cert *x509.Certificate) InspectResult {
	return InspectResult{
		Type:      "certificate",
		Subject:   cert.Subject.String(),
		Issuer:    cert.Issuer.String(),
		Serial:    cert.SerialNumber.String(),
		NotBefore: cert.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:  cert.NotAfter.UTC().Format(time.RFC3339),
		KeyAlgo:   publicKeyAlgorithmName(cert.PublicKey),
		KeySize:   publicKeySize(cert.PublicKey),
		SHA256:    datacellar.CertFingerprint(cert),
		SigAlg:    cert.SignatureAlgorithm.String(),
	}
}

func inspectKey(key crypto.PrivateKey) InspectResult {
	return InspectResult{
		Type:    "private_key",
		KeyType: datacellar.KeyAlgorithmName(key),
		KeySize: privateKeySize(key),
	}
}

func publicKeyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "ECDSA"
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}

func publicKeySize(pub crypto.PublicKey) string {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("%d", k.N.BitLen())
	case *ecdsa.PublicKey:
		return k.Curve.Params().Name
	case ed25519.PublicKey:
		return "256"
	default:
		return "unknown"
	}
}

func privateKeySize(key crypto.PrivateKey) string {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return fmt.Sprintf("%d", k.N.BitLen())
	case *ecdsa.PrivateKey:
		return k.Curve.Params().Name
	case ed25519.PrivateKey, *ed25519.PrivateKey:
		return "256"
	default:
		return "unknown"
	}
}

// FormatInspectResults formats inspection results as text or JSON.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch r.Type {
		case "certificate":
			fmt.Fprintf(&sb, "Certificate:\n")
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
			fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
			fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
			fmt.Fprintf(&sb, "  Key:         %s %s\n", r.KeyAlgo, r.KeySize)
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
		case "private_key":
			fmt.Fprintf(&sb, "Private Key:\n")
			fmt.Fprintf(&sb, "  Type:        %s\n", r.KeyType)
			fmt.Fprintf(&sb, "  Size:        %s\n", r.KeySize)
		case "vault_properties":
			fmt.Fprintf(&sb, "Vault Properties:\n")
			fmt.Fprintf(&sb, "  Properties:  %s\n", strings.Join(r.Properties, ", "))
			fmt.Fprintf(&sb, "  API Key:     %s\n", r.APIKey)
		}
	}
	return sb.String()
}
