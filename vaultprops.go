package datacellar

import (
	"bytes"
	"fmt"
	"strings"
)

// Property keys written to vault.properties files.
const (
	// PropPublicKey holds the escaped PEM certificate.
	PropPublicKey = "publickey"

	// PropAPIKey holds the backend API key literal for the connector.
	PropAPIKey = "apikey"

	// PropPrivateKey holds the escaped PEM private key. Only the legacy
	// profile writes it; the key name doubles as the vault secret alias.
	PropPrivateKey = "datacellar"
)

// EscapePEM flattens a PEM document to a single-line properties value. CRLF
// pairs are normalized to LF first, then every newline becomes the literal
// two-character escapes `\r` `\n`. The Java properties loader decodes those
// back into real line breaks when the connector reads the secret.
func EscapePEM(pemText string) string {
	normalized := strings.ReplaceAll(pemText, "\r\n", "\n")
	return strings.ReplaceAll(normalized, "\n", `\r\n`)
}

// UnescapePEM reverses EscapePEM, turning literal `\r\n` escape sequences
// back into newlines. Round-trips byte-for-byte for LF-terminated PEM.
func UnescapePEM(value string) string {
	return strings.ReplaceAll(value, `\r\n`, "\n")
}

// VaultProperties is the secret set a connector loads from vault.properties.
type VaultProperties struct {
	PublicKey  string // escaped PEM certificate
	APIKey     string
	PrivateKey string // escaped PEM private key, empty outside the legacy profile
}

// Encode renders the properties file. Key order is fixed: publickey, the
// datacellar private key entry when present, then apikey.
func (p *VaultProperties) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s=%s\n", PropPublicKey, p.PublicKey)
	if p.PrivateKey != "" {
		fmt.Fprintf(&buf, "%s=%s\n", PropPrivateKey, p.PrivateKey)
	}
	fmt.Fprintf(&buf, "%s=%s\n", PropAPIKey, p.APIKey)
	return buf.Bytes()
}

// ParseVaultProperties parses a vault.properties document. Blank lines and
// #-comments are skipped; other lines must be key=value with one of the
// known property keys. Values keep their escape sequences.
func ParseVaultProperties(data []byte) (*VaultProperties, error) {
	props := &VaultProperties{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected key=value, got %q", i+1, line)
		}
		switch key {
		case PropPublicKey:
			props.PublicKey = value
		case PropAPIKey:
			props.APIKey = value
		case PropPrivateKey:
			props.PrivateKey = value
		default:
			return nil, fmt.Errorf("line %d: unknown property %q", i+1, key)
		}
	}
	if props.PublicKey == "" {
		return nil, fmt.Errorf("missing required property %q", PropPublicKey)
	}
	if props.APIKey == "" {
		return nil, fmt.Errorf("missing required property %q", PropAPIKey)
	}
	return props, nil
}
