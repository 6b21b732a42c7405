package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	datacellar "github.com/Data-Cellar/dss-sequence-example"
)

// ConnectorConfig is one connector entry from the layout YAML.
type ConnectorConfig struct {
	Name       string `yaml:"name"`
	CommonName string `yaml:"commonName,omitempty"`
	Dir        string `yaml:"dir,omitempty"`
	Profile    string `yaml:"profile,omitempty"`
	Bits       int    `yaml:"bits,omitempty"`
	JKS        bool   `yaml:"jks,omitempty"`
}

// Layout is the full layout document describing the connectors to provision.
// Document-level certsDir and profile act as defaults for entries that do not
// set their own.
type Layout struct {
	CertsDir   string            `yaml:"certsDir,omitempty"`
	Profile    string            `yaml:"profile,omitempty"`
	Connectors []ConnectorConfig `yaml:"connectors"`
}

// LoadLayout loads a connector layout from the specified YAML file and
// applies document-level defaults to each entry.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var layout Layout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("parsing layout %s: %w", path, err)
	}
	if len(layout.Connectors) == 0 {
		return nil, fmt.Errorf("layout %s declares no connectors", path)
	}

	certsDir := layout.CertsDir
	if certsDir == "" {
		certsDir = "certs"
	}
	for i := range layout.Connectors {
		c := &layout.Connectors[i]
		if c.Name == "" {
			return nil, fmt.Errorf("layout %s: connector %d has no name", path, i)
		}
		if c.Dir == "" {
			c.Dir = filepath.Join(certsDir, c.Name)
		}
		if c.Profile == "" {
			c.Profile = layout.Profile
		}
	}
	return &layout, nil
}

// ProvisionLayout provisions every connector in the layout in order,
// stopping at the first failure.
func ProvisionLayout(ca CertificateAuthority, layout *Layout) error {
	for _, c := range layout.Connectors {
		profile, err := datacellar.ParseProfile(c.Profile)
		if err != nil {
			return fmt.Errorf("connector %s: %w", c.Name, err)
		}
		err = Provision(ca, ProvisionOptions{
			Dir:        c.Dir,
			Identity:   c.Name,
			CommonName: c.CommonName,
			Bits:       c.Bits,
			Profile:    profile,
			JKS:        c.JKS,
		})
		if err != nil {
			return fmt.Errorf("provisioning %s: %w", c.Name, err)
		}
	}
	return nil
}
