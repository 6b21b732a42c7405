package datacellar

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

// EncodeJKS creates a Java KeyStore holding a private key entry with its
// certificate under KeystoreAlias. The same password protects both the store
// and the key entry (standard Java convention). Unlike PKCS#12, JKS carries
// the alias on the wire, so tooling that looks entries up by name sees
// "datacellar" directly.
func EncodeJKS(privateKey crypto.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	pkcs8Key, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}

	ks := keystore.New()
	if err := ks.SetPrivateKeyEntry(KeystoreAlias, keystore.PrivateKeyEntry{
		CreationTime: time.Now(),
		PrivateKey:   pkcs8Key,
		CertificateChain: []keystore.Certificate{
			{Type: "X.509", Content: cert.Raw},
		},
	}, []byte(password)); err != nil {
		return nil, fmt.Errorf("setting JKS private key entry: %w", err)
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeJKS decodes a Java KeyStore and returns the private key and
// certificate stored under KeystoreAlias. The same password is used for both
// the store and the entry.
func DecodeJKS(data []byte, password string) (crypto.PrivateKey, *x509.Certificate, error) {
	ks := keystore.New()
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("loading JKS: %w", err)
	}

	if !ks.IsPrivateKeyEntry(KeystoreAlias) {
		return nil, nil, fmt.Errorf("JKS has no private key entry under alias %q", KeystoreAlias)
	}
	entry, err := ks.GetPrivateKeyEntry(KeystoreAlias, []byte(password))
	if err != nil {
		return nil, nil, fmt.Errorf("reading JKS private key entry: %w", err)
	}

	key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JKS private key: %w", err)
	}
	if len(entry.CertificateChain) == 0 {
		return nil, nil, errors.New("JKS private key entry has no certificate chain")
	}
	cert, err := x509.ParseCertificate(entry.CertificateChain[0].Content)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JKS certificate: %w", err)
	}

	return key, cert, nil
}
