package datacellar

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// DefaultRSABits is the key size used when no explicit size is given.
	DefaultRSABits = 2048

	// CertValidityDays is the lifetime of generated certificates.
	CertValidityDays = 365
)

// KeyMaterial pairs a freshly generated RSA private key with its self-signed
// certificate.
type KeyMaterial struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
}

// KeyPEM returns the private key as PKCS#8 PEM.
func (m *KeyMaterial) KeyPEM() (string, error) {
	return MarshalPrivateKeyToPEM(m.PrivateKey)
}

// CertPEM returns the certificate as PEM.
func (m *KeyMaterial) CertPEM() string {
	return CertToPEM(m.Certificate)
}

// GenerateKeyMaterial generates an RSA key of the given size (DefaultRSABits
// when bits is zero) and a self-signed certificate with the given subject
// common name, valid for CertValidityDays from now.
func GenerateKeyMaterial(commonName string, bits int) (*KeyMaterial, error) {
	if commonName == "" {
		return nil, errors.New("common name must not be empty")
	}
	if bits == 0 {
		bits = DefaultRSABits
	}
	key, err := GenerateRSAKey(bits)
	if err != nil {
		return nil, err
	}
	cert, err := SelfSignCertificate(key, commonName)
	if err != nil {
		return nil, err
	}
	return &KeyMaterial{PrivateKey: key, Certificate: cert}, nil
}

// SelfSignCertificate issues a self-signed certificate for the key. The
// subject and issuer carry only the common name, and the certificate is
// marked CA:TRUE, matching the shape of an openssl req -x509 certificate
// that the connector deployments were originally provisioned with.
func SelfSignCertificate(key *rsa.PrivateKey, commonName string) (*x509.Certificate, error) {
	if commonName == "" {
		return nil, errors.New("common name must not be empty")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, CertValidityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing created certificate: %w", err)
	}
	return cert, nil
}
