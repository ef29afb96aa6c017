// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"github.com/toeirei/dcprovision/internal/config"
)

// PathSet names every artifact a run writes.
type PathSet struct {
	ConfigFile     string
	ShareConf      string
	HKLM           string
	SamDB          string
	Secrets        string
	DNS            string
	LDAPBaseDNLDIF string
}

// DefaultPaths derives the artifact locations from p. Relative names land in
// the private directory; dnsDomain names the zone and base LDIF files.
func DefaultPaths(p Params, dnsDomain string) PathSet {
	dir := p.Get(config.KeyPrivateDir)
	priv := func(name string) string { return config.ResolvePrivate(dir, name) }
	sam := p.Get(config.KeySamDatabase)
	if sam == "" {
		sam = "sam.ldb"
	}
	return PathSet{
		ConfigFile:     p.Get(config.KeyConfigFile),
		ShareConf:      priv("share.ldb"),
		HKLM:           priv("hklm.ldb"),
		SamDB:          priv(sam),
		Secrets:        priv("secrets.ldb"),
		DNS:            priv(dnsDomain + ".zone"),
		LDAPBaseDNLDIF: priv(dnsDomain + ".ldif"),
	}
}
