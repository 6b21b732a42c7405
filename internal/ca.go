package internal

import (
	"crypto/rsa"
	"crypto/x509"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// CertificateAuthority is the crypto capability the provisioning workflow
// runs against. The default implementation generates self-signed material
// in process; tests substitute deterministic fakes.
type CertificateAuthority interface {
	// GenerateKeyPair creates a new RSA private key of the given bit size.
	GenerateKeyPair(bits int) (*rsa.PrivateKey, error)

	// SelfSign issues a self-signed certificate for the key with the given
	// subject common name.
	SelfSign(key *rsa.PrivateKey, commonName string) (*x509.Certificate, error)

	// EncodePKCS12 packages the key and certificate into a PKCS#12 keystore
	// protected by password.
	EncodePKCS12(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error)
}

// LocalCA implements CertificateAuthority with in-process key generation
// and self-signing.
type LocalCA struct {
	// LegacyCipher selects the RC2-based PKCS#12 encoding for Java 8 era
	// keystore loaders.
	LegacyCipher bool
}

func (ca *LocalCA) GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits == 0 {
		bits = datacellar.DefaultRSABits
	}
	return datacellar.GenerateRSAKey(bits)
}

func (ca *LocalCA) SelfSign(key *rsa.PrivateKey, commonName string) (*x509.Certificate, error) {
	return datacellar.SelfSignCertificate(key, commonName)
}

func (ca *LocalCA) EncodePKCS12(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	if ca.LegacyCipher {
		return datacellar.EncodePKCS12Legacy(key, cert, password)
	}
	return datacellar.EncodePKCS12(key, cert, password)
}
