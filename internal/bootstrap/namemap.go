// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/toeirei/dcprovision/internal/db"
)

// ForeignPrincipal is a well-known security principal that lives outside
// the domain.
type ForeignPrincipal struct {
	SID  string
	Name string
}

// ForeignPrincipals are created under CN=ForeignSecurityPrincipals.
var ForeignPrincipals = []ForeignPrincipal{
	{"S-1-5-7", "Anonymous"},
	{"S-1-1-0", "World"},
	{"S-1-5-2", "Network"},
	{"S-1-5-18", "System"},
	{"S-1-5-11", "Authenticated Users"},
}

// NameMapping binds a security identifier to a Unix account or group name.
type NameMapping struct {
	SID  string
	Unix string
}

// NameMappings lists the mappings for a domain. Well-known principals map to
// fixed names; the rest take the names the defaults guesser resolved.
func NameMappings(c ContextReader, domainSID string) []NameMapping {
	return []NameMapping{
		{"S-1-5-7", c.String("NOBODY")},
		{"S-1-1-0", c.String("NOGROUP")},
		{"S-1-5-2", c.String("NOGROUP")},
		{"S-1-5-18", c.String("ROOT")},
		{"S-1-5-11", c.String("USERS")},
		{"S-1-5-32-544", c.String("WHEEL")},
		{"S-1-5-32-545", c.String("USERS")},
		{"S-1-5-32-546", c.String("NOGROUP")},
		{"S-1-5-32-551", c.String("BACKUP")},
		{domainSID + "-500", c.String("ROOT")},
		{domainSID + "-518", c.String("WHEEL")},
		{domainSID + "-519", c.String("WHEEL")},
		{domainSID + "-512", c.String("WHEEL")},
		{domainSID + "-513", c.String("USERS")},
		{domainSID + "-520", c.String("WHEEL")},
	}
}

// ContextReader is the read side of setup.Context.
type ContextReader interface {
	String(name string) string
}

// EstablishNameMappings creates the foreign principal placeholders and
// attaches a unixName to every mapped principal. Each failure is reported;
// the returned error is tolerated and lists the identifiers that could not
// be mapped. Only an unreadable domain SID is fatal.
func (s *Session) EstablishNameMappings(ctx context.Context) error {
	base := s.ri.Context.String("BASEDN")
	domainSID, err := s.searchOne(ctx, base, db.ScopeBase, "objectSid=*", "objectSid")
	if err != nil {
		return Fatalf(s.phase, err, "read domain SID from %s", base)
	}

	for _, fp := range ForeignPrincipals {
		if err := s.addForeignPrincipal(ctx, base, fp); err != nil {
			s.ri.report("bootstrap.foreign_principal_failed", fp.SID, err)
		}
	}

	var failed []string
	for _, m := range NameMappings(s.ri.Context, domainSID) {
		if err := s.mapName(ctx, base, m); err != nil {
			s.ri.report("bootstrap.namemap_failed", m.SID, err)
			failed = append(failed, m.SID)
		}
	}
	if len(failed) > 0 {
		return Toleratedf(s.phase, nil, "name mapping incomplete for %s", strings.Join(failed, ", "))
	}
	return nil
}

func (s *Session) addForeignPrincipal(ctx context.Context, base string, fp ForeignPrincipal) error {
	req := ldap.NewAddRequest(fmt.Sprintf("CN=%s,CN=ForeignSecurityPrincipals,%s", fp.SID, base), nil)
	req.Attribute("objectClass", []string{"top", "foreignSecurityPrincipal"})
	req.Attribute("cn", []string{fp.SID})
	req.Attribute("description", []string{fp.Name})
	req.Attribute("objectSid", []string{fp.SID})
	return s.store.Add(ctx, []*ldap.AddRequest{req})
}

func (s *Session) mapName(ctx context.Context, base string, m NameMapping) error {
	if m.Unix == "" {
		return fmt.Errorf("no unix name for objectSid %s", m.SID)
	}
	filter := "objectSid=" + ldap.EscapeFilter(m.SID)
	res, err := s.store.Search(ctx, base, db.ScopeSubtree, filter, []string{"dn"})
	if err != nil {
		return fmt.Errorf("search for objectSid %s: %w", m.SID, err)
	}
	if len(res) != 1 {
		return fmt.Errorf("failed to find record for objectSid %s", m.SID)
	}
	mod := ldap.NewModifyRequest(res[0].DN, nil)
	mod.Replace("unixName", []string{m.Unix})
	if err := s.store.Modify(ctx, []*ldap.ModifyRequest{mod}); err != nil {
		return fmt.Errorf("set unixName on %s: %w", res[0].DN, err)
	}
	return nil
}
