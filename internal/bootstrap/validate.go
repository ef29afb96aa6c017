// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"strings"

	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/setup"
)

// MaxNetbiosNameLen is the longest usable NetBIOS name.
const MaxNetbiosNameLen = 13

// ValidNetbiosName reports whether name can be used as a NetBIOS name.
func ValidNetbiosName(name string) bool {
	return name != "" && len(name) <= MaxNetbiosNameLen
}

// requiredFields must be non-empty before any store is touched.
var requiredFields = []string{"REALM", "DOMAIN", "HOSTNAME", "BASEDN"}

// CheckContext fails fast on a context missing any required field.
func CheckContext(c setup.Context) error {
	for _, name := range requiredFields {
		if c.String(name) == "" {
			return Fatalf(PhaseValidate, nil, "%s must be set", name)
		}
	}
	return nil
}

// Validate checks naming rules and that the configuration agrees with the
// requested domain and realm.
func Validate(c setup.Context, p Params) error {
	if err := CheckContext(c); err != nil {
		return err
	}
	domain := c.String("DOMAIN")
	if !ValidNetbiosName(domain) {
		return Fatalf(PhaseValidate, nil, "invalid NetBIOS name for domain %q", domain)
	}
	netbios := c.String("NETBIOSNAME")
	if netbios == "" {
		netbios = strings.ToUpper(c.String("HOSTNAME"))
	}
	if !ValidNetbiosName(netbios) {
		return Fatalf(PhaseValidate, nil, "invalid NetBIOS name for host %q", netbios)
	}
	if wg := p.Get(config.KeyWorkgroup); !strings.EqualFold(wg, domain) {
		return Fatalf(PhaseValidate, nil, "workgroup %q in configuration does not match chosen domain %q", wg, domain)
	}
	realm := c.String("REALM")
	if r := p.Get(config.KeyRealm); !strings.EqualFold(r, realm) {
		return Fatalf(PhaseValidate, nil, "realm %q in configuration does not match chosen realm %q", r, realm)
	}
	return nil
}
