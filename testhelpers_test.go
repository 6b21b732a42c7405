package datacellar

import (
	"testing"
)

// generateTestMaterial creates key material with a small key size to keep the
// suite fast. Tests that assert on default sizing generate their own.
func generateTestMaterial(t *testing.T, commonName string) *KeyMaterial {
	t.Helper()
	material, err := GenerateKeyMaterial(commonName, 1024)
	if err != nil {
		t.Fatal(err)
	}
	return material
}
