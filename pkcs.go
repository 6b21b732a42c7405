package datacellar

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

const (
	// KeystoreAlias is the entry name the connector configuration refers to.
	// PKCS#12 encoding identifies the sole key entry by local key ID rather
	// than friendly name, so the alias is carried explicitly only in JKS
	// output; Java resolves the single PKCS#12 entry on load either way.
	KeystoreAlias = "datacellar"

	// KeystorePassword protects generated keystores. The connectors read it
	// from their vault configuration, so it is fixed rather than prompted.
	KeystorePassword = "datacellar"
)

// validatePKCS12KeyType checks that the private key is a supported type for PKCS#12 encoding.
func validatePKCS12KeyType(privateKey crypto.PrivateKey) error {
	switch privateKey.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
		return nil
	default:
		return fmt.Errorf("unsupported private key type %T", privateKey)
	}
}

// EncodePKCS12 creates a PKCS#12/PFX keystore holding the private key and its
// self-signed certificate, protected by the given password. Returns the
// DER-encoded PKCS#12 data.
func EncodePKCS12(privateKey crypto.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12KeyType(privateKey); err != nil {
		return nil, err
	}
	return gopkcs12.Modern.Encode(privateKey, cert, nil, password)
}

// EncodePKCS12Legacy creates a PKCS#12/PFX keystore using the legacy RC2
// cipher for compatibility with Java 8 era keystore loaders.
func EncodePKCS12Legacy(privateKey crypto.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	if err := validatePKCS12KeyType(privateKey); err != nil {
		return nil, err
	}
	return gopkcs12.LegacyRC2.Encode(privateKey, cert, nil, password)
}

// DecodePKCS12 decodes a PKCS#12/PFX keystore and returns the private key,
// leaf certificate, and any CA certificates it carries.
func DecodePKCS12(pfxData []byte, password string) (crypto.PrivateKey, *x509.Certificate, []*x509.Certificate, error) {
	privateKey, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	return privateKey, leaf, caCerts, nil
}

// EncodePKCS7 creates a certs-only PKCS#7/P7B bundle from one or more
// certificates. Java tooling uses this format to hand a connector certificate
// to a counterpart without the private key. Returns the DER-encoded PKCS#7
// SignedData structure.
func EncodePKCS7(certs []*x509.Certificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errors.New("no certificates to encode")
	}
	var derBytes []byte
	for _, cert := range certs {
		derBytes = append(derBytes, cert.Raw...)
	}
	return pkcs7.DegenerateCertificate(derBytes)
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the certificates
// it contains. Returns an error if decoding fails or the bundle carries no
// certificates.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}
