// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

// ProvisionLDAPBase writes the base DN record as LDIF for loading into an
// external LDAP server.
func ProvisionLDAPBase(ri *RunInfo) error {
	ri.defaults()
	if err := CheckContext(ri.Context); err != nil {
		return err
	}
	c := ri.Context.Clone()
	base := c.String("BASEDN")
	ri.report("bootstrap.ldapbase", base)
	c.Set("EXTENSIBLEOBJECT", "objectClass: extensibleObject")
	rdn, err := firstRDNValue(base)
	if err != nil {
		return Fatalf(PhaseLDAPBase, err, "parse base DN %q", base)
	}
	c.Set("RDN_DC", rdn)
	if err := ri.Templates.RenderFile(ri.Files, "provision_basedn.ldif", ri.Paths.LDAPBaseDNLDIF, c, 0o644); err != nil {
		return Fatalf(PhaseLDAPBase, err, "write %s", ri.Paths.LDAPBaseDNLDIF)
	}
	ri.report("bootstrap.ldapbase_install", ri.Paths.LDAPBaseDNLDIF)
	return nil
}
