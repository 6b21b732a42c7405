package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

func TestVerifyDir_FreshDirectory(t *testing.T) {
	t.Parallel()

	dir := provisionReal(t, "dss_connector", datacellar.ProfileLegacy, true)

	result, err := VerifyDir(&VerifyInput{Dir: dir, Identity: "dss_connector", Profile: datacellar.ProfileLegacy})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Errors) != 0 {
		t.Fatalf("verification errors: %v", result.Errors)
	}
	for name, v := range map[string]*bool{"key_match": result.KeyMatch, "keystore": result.Keystore, "jks": result.JKS, "vault": result.Vault} {
		if v == nil || !*v {
			t.Errorf("%s check did not pass", name)
		}
	}
	if !strings.Contains(result.Subject, "dss_connector") {
		t.Errorf("subject: got %q", result.Subject)
	}
}

func TestVerifyDir_TamperedCert(t *testing.T) {
	// WHY: swapping cert.pem for someone else's certificate must trip the key
	// match, the keystore comparison, and the vault round-trip at once.
	t.Parallel()

	dir := provisionReal(t, "dss_connector", datacellar.ProfilePublic, false)

	_, otherCert := newTestMaterial(t, "dss_connector")
	if err := os.WriteFile(filepath.Join(dir, CertFileName), []byte(datacellar.CertToPEM(otherCert)), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := VerifyDir(&VerifyInput{Dir: dir, Identity: "dss_connector", Profile: datacellar.ProfilePublic})
	if err != nil {
		t.Fatal(err)
	}

	if result.KeyMatch == nil || *result.KeyMatch {
		t.Error("key match must fail against the swapped certificate")
	}
	if result.Keystore == nil || *result.Keystore {
		t.Error("keystore check must fail against the swapped certificate")
	}
	if result.Vault == nil || *result.Vault {
		t.Error("vault check must fail against the swapped certificate")
	}
	if len(result.Errors) == 0 {
		t.Error("expected accumulated errors")
	}
}

func TestVerifyDir_ProfileMismatch(t *testing.T) {
	// WHY: a public-profile directory checked against legacy expectations has
	// the wrong apikey literal and no embedded private key.
	t.Parallel()

	dir := provisionReal(t, "dss_connector", datacellar.ProfilePublic, false)

	result, err := VerifyDir(&VerifyInput{Dir: dir, Identity: "dss_connector", Profile: datacellar.ProfileLegacy})
	if err != nil {
		t.Fatal(err)
	}

	if result.Vault == nil || *result.Vault {
		t.Fatal("vault check must fail for a profile mismatch")
	}
	joined := strings.Join(result.Errors, "; ")
	if !strings.Contains(joined, "apikey") {
		t.Errorf("errors do not mention the apikey literal: %v", result.Errors)
	}
	if !strings.Contains(joined, "missing the datacellar private key entry") {
		t.Errorf("errors do not mention the missing private key entry: %v", result.Errors)
	}
}

func TestVerifyDir_WrongCommonName(t *testing.T) {
	t.Parallel()

	dir := provisionReal(t, "dss_connector", datacellar.ProfilePublic, false)

	result, err := VerifyDir(&VerifyInput{Dir: dir, Identity: "dss_connector", CommonName: "different_name", Profile: datacellar.ProfilePublic})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "subject CN") {
		t.Errorf("expected a subject CN finding, got %v", result.Errors)
	}
}

func TestVerifyDir_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := VerifyDir(&VerifyInput{Dir: filepath.Join(t.TempDir(), "absent"), Identity: "dss_connector"})
	if err == nil {
		t.Fatal("expected error for a missing directory")
	}
	if !strings.Contains(err.Error(), "reading certificate") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFormatVerifyResult(t *testing.T) {
	t.Parallel()

	dir := provisionReal(t, "dss_connector", datacellar.ProfilePublic, false)
	result, err := VerifyDir(&VerifyInput{Dir: dir, Identity: "dss_connector", Profile: datacellar.ProfilePublic})
	if err != nil {
		t.Fatal(err)
	}

	text := FormatVerifyResult(result)
	if !strings.Contains(text, "Verification OK") {
		t.Errorf("text output missing OK banner:\n%s", text)
	}
	if !strings.Contains(text, "Keystore: OK") {
		t.Errorf("text output missing keystore status:\n%s", text)
	}
	// No JKS was packaged, so its line must be absent rather than FAILED.
	if strings.Contains(text, "JKS:") {
		t.Errorf("text output mentions JKS for a directory without one:\n%s", text)
	}
}
