package datacellar

import "fmt"

// DashboardConnector is the connector identity whose vault receives the
// dashboard API key. Any other identity is treated as the DSS connector.
const DashboardConnector = "dashboard_connector"

// API key literals provisioned into connector vaults.
const (
	DashboardAPIKey  = "dashboard-api-key"
	DSSAPIKey        = "dss-api-key"
	DSSBackendAPIKey = "dss-backend-key"
)

// Profile selects between the two provisioning flavors in use. Public writes
// only certificate material to the vault; Legacy additionally embeds the
// private key under the datacellar property. Both remain supported because
// deployed connector configurations exist for each.
type Profile string

const (
	ProfilePublic Profile = "public"
	ProfileLegacy Profile = "legacy"
)

// ParseProfile parses a profile name. The empty string selects ProfilePublic.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfilePublic, ProfileLegacy:
		return Profile(s), nil
	case "":
		return ProfilePublic, nil
	default:
		return "", fmt.Errorf("unknown profile %q (want %q or %q)", s, ProfilePublic, ProfileLegacy)
	}
}

// APIKeyFor returns the vault apikey literal for a connector identity under
// the given profile. The dashboard literal is the same in both profiles; the
// DSS side differs because each profile's deployment pairs with a different
// backend configuration.
func APIKeyFor(identity string, profile Profile) string {
	if identity == DashboardConnector {
		return DashboardAPIKey
	}
	if profile == ProfileLegacy {
		return DSSBackendAPIKey
	}
	return DSSAPIKey
}
