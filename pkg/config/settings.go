package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

// KeyResolver looks up the API key of a vendor. *credentials.Manager
// satisfies it.
type KeyResolver interface {
	ResolveKey(provider string) (string, error)
}

// ServiceSettings assembles the settings for vendorID from the vendors
// section, the key resolver and, for local vendors, the host environment
// variable. keys may be nil for callers that never need API keys.
func (c *Config) ServiceSettings(vendorID string, keys KeyResolver) (vendor.ServiceSettings, error) {
	v := vendor.FindModelVendor(vendorID)
	if v == nil {
		return vendor.ServiceSettings{}, &InvalidValueError{Key: "vendor", Value: vendorID, AllowedValues: vendor.IDs()}
	}

	vc := c.vendorSettings(vendorID)
	s := vendor.ServiceSettings{
		Host:        vc.Host,
		OrgID:       vc.OrgID,
		HeliconeKey: vc.HeliconeKey,
		JSONOutput:  vc.JSONOutput,
	}

	if s.Host == "" && strings.HasSuffix(v.HasServerConfigKey, "_API_HOST") {
		s.Host = os.Getenv(v.HasServerConfigKey)
	}

	if keys != nil {
		key, err := keys.ResolveKey(vendorID)
		if err != nil {
			return vendor.ServiceSettings{}, fmt.Errorf("resolving %s key: %w", vendorID, err)
		}
		s.Key = key
	}

	return s, nil
}

// Access resolves the access value for vendorID. It is ServiceSettings
// followed by the vendor's TransportAccess.
func (c *Config) Access(vendorID string, keys KeyResolver) (access.Access, error) {
	s, err := c.ServiceSettings(vendorID, keys)
	if err != nil {
		return nil, err
	}
	return vendor.FindModelVendor(vendorID).TransportAccess(s), nil
}
