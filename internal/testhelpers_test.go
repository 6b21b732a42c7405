package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"testing"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// newTestMaterial returns small pre-generated key material so tests avoid
// repeated full-size key generation.
func newTestMaterial(t *testing.T, commonName string) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := datacellar.GenerateRSAKey(1024)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := datacellar.SelfSignCertificate(key, commonName)
	if err != nil {
		t.Fatal(err)
	}
	return key, cert
}

// fakeCA implements CertificateAuthority with pre-generated material and
// canned keystore bytes, recording every call so tests can assert the
// provisioning workflow drives the capability interface and nothing else.
type fakeCA struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
	pfx  []byte

	generatedBits     []int
	signedCommonNames []string
	encodedPasswords  []string
}

func newFakeCA(t *testing.T, commonName string) *fakeCA {
	t.Helper()
	key, cert := newTestMaterial(t, commonName)
	return &fakeCA{key: key, cert: cert, pfx: []byte("canned-pfx-bytes")}
}

func (f *fakeCA) GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	f.generatedBits = append(f.generatedBits, bits)
	return f.key, nil
}

func (f *fakeCA) SelfSign(key *rsa.PrivateKey, commonName string) (*x509.Certificate, error) {
	f.signedCommonNames = append(f.signedCommonNames, commonName)
	return f.cert, nil
}

func (f *fakeCA) EncodePKCS12(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	f.encodedPasswords = append(f.encodedPasswords, password)
	return f.pfx, nil
}

// provisionReal runs a full provisioning pass with the real LocalCA and a
// small key size, returning the directory.
func provisionReal(t *testing.T, identity string, profile datacellar.Profile, jks bool) string {
	t.Helper()
	dir := t.TempDir()
	err := Provision(&LocalCA{}, ProvisionOptions{
		Dir:      dir,
		Identity: identity,
		Bits:     1024,
		Profile:  profile,
		JKS:      jks,
	})
	if err != nil {
		t.Fatal(err)
	}
	return dir
}
