// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"

	"github.com/toeirei/dcprovision/internal/db"
)

// ProvisionDNS writes a zone file for the domain. The domain and host GUIDs
// are read back from the main store, since they may differ from anything
// the caller supplied.
func ProvisionDNS(ctx context.Context, ri *RunInfo) error {
	ri.defaults()
	if err := CheckContext(ri.Context); err != nil {
		return err
	}
	if err := PrepareContext(ri); err != nil {
		return err
	}
	c := ri.Context.Clone()
	ri.report("bootstrap.dns", c.String("DNSDOMAIN"))

	s, err := Connect(ctx, ri, PhaseDNS, ri.Paths.SamDB)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	base := c.String("BASEDN")
	domainGUID, err := s.searchOne(ctx, base, db.ScopeBase, "objectGUID=*", "objectGUID")
	if err != nil {
		return Fatalf(PhaseDNS, err, "read domain GUID")
	}
	filter := "(&(objectClass=computer)(cn=" + ldapEscape(c.String("NETBIOSNAME")) + "))"
	hostGUID, err := s.searchOne(ctx, base, db.ScopeSubtree, filter, "objectGUID")
	if err != nil {
		return Fatalf(PhaseDNS, err, "read host GUID")
	}
	c.Set("DOMAINGUID", domainGUID)
	c.Set("HOSTGUID", hostGUID)

	if err := ri.Templates.RenderFile(ri.Files, "provision.zone", ri.Paths.DNS, c, 0o644); err != nil {
		return Fatalf(PhaseDNS, err, "write %s", ri.Paths.DNS)
	}
	ri.report("bootstrap.dns_install", ri.Paths.DNS)
	return nil
}
