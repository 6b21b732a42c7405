package internal

import (
	"testing"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

func TestLocalCA_DefaultBits(t *testing.T) {
	t.Parallel()

	key, err := (&LocalCA{}).GenerateKeyPair(0)
	if err != nil {
		t.Fatal(err)
	}
	if got := key.N.BitLen(); got != datacellar.DefaultRSABits {
		t.Errorf("key size: got %d, want %d", got, datacellar.DefaultRSABits)
	}
}

func TestLocalCA_EncodePKCS12_CipherFlavors(t *testing.T) {
	// WHY: the legacy RC2 flavor exists for Java 8 era loaders; both flavors
	// must decode with the same password.
	t.Parallel()

	key, cert := newTestMaterial(t, "cipher_check")

	for _, ca := range []*LocalCA{{}, {LegacyCipher: true}} {
		pfxData, err := ca.EncodePKCS12(key, cert, datacellar.KeystorePassword)
		if err != nil {
			t.Fatal(err)
		}
		decodedKey, _, _, err := datacellar.DecodePKCS12(pfxData, datacellar.KeystorePassword)
		if err != nil {
			t.Fatalf("LegacyCipher=%v: %v", ca.LegacyCipher, err)
		}
		match, err := datacellar.KeyMatchesCert(decodedKey, cert)
		if err != nil {
			t.Fatal(err)
		}
		if !match {
			t.Errorf("LegacyCipher=%v: decoded key does not match certificate", ca.LegacyCipher)
		}
	}
}
