// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/state"
)

const (
	ufAccountDisable = 0x2
	// UF_NORMAL_ACCOUNT | UF_PASSWD_NOTREQD | UF_ACCOUNTDISABLE
	newUserAccountControl = 0x200 | 0x20 | ufAccountDisable
	domainUsersRID        = 513
)

// NewUser adds an enabled account to the main store and makes it a member
// of Domain Users. unixName defaults to username. An empty password is
// taken from ri.Secrets under state.UserPass.
func NewUser(ctx context.Context, ri *RunInfo, username, unixName, password string) error {
	ri.defaults()
	if username == "" {
		return Fatalf(PhaseNewUser, nil, "empty user name")
	}
	if password == "" {
		password, _ = ri.Secrets.Take(state.UserPass)
	}
	if password == "" {
		return Fatalf(PhaseNewUser, nil, "empty password for %s", username)
	}
	if unixName == "" {
		unixName = username
	}
	s, err := OpenForBootstrap(ctx, ri, PhaseNewUser, ri.Paths.SamDB, false)
	if err != nil {
		return err
	}
	committed := false
	defer func() { s.release(ctx, committed) }()

	domainDN, err := s.searchOne(ctx, "", db.ScopeBase, "defaultNamingContext=*", "defaultNamingContext")
	if err != nil {
		return Fatalf(PhaseNewUser, err, "read default naming context")
	}
	domainSID, err := s.searchOne(ctx, domainDN, db.ScopeBase, "objectSid=*", "objectSid")
	if err != nil {
		return Fatalf(PhaseNewUser, err, "read domain SID")
	}
	groupDN, err := s.searchOne(ctx, domainDN, db.ScopeSubtree, "name=Domain Users", "dn")
	if err != nil {
		return Fatalf(PhaseNewUser, err, "find Domain Users")
	}
	rid, err := s.allocateRID(ctx, domainDN)
	if err != nil {
		return Fatalf(PhaseNewUser, err, "allocate RID")
	}
	guid, err := ri.Rand.GUID()
	if err != nil {
		return Fatalf(PhaseNewUser, err, "generate GUID")
	}

	userDN := fmt.Sprintf("CN=%s,CN=Users,%s", escapeRDNValue(username), domainDN)
	ri.report("bootstrap.newuser_add", userDN)
	add := ldap.NewAddRequest(userDN, nil)
	add.Attribute("objectClass", []string{"top", "person", "organizationalPerson", "user"})
	add.Attribute("cn", []string{username})
	add.Attribute("name", []string{username})
	add.Attribute("sAMAccountName", []string{username})
	add.Attribute("memberOf", []string{groupDN})
	add.Attribute("unixName", []string{unixName})
	add.Attribute("sambaPassword", []string{password})
	add.Attribute("objectSid", []string{fmt.Sprintf("%s-%d", domainSID, rid)})
	add.Attribute("objectGUID", []string{guid})
	add.Attribute("primaryGroupID", []string{strconv.Itoa(domainUsersRID)})
	add.Attribute("userAccountControl", []string{strconv.Itoa(newUserAccountControl)})
	add.Attribute("whenCreated", []string{LDAPTime(ri.Clock.Now())})
	if err := s.store.Add(ctx, []*ldap.AddRequest{add}); err != nil {
		return Fatalf(PhaseNewUser, err, "Failed to add %s", userDN)
	}

	ri.report("bootstrap.newuser_group", groupDN)
	member := ldap.NewModifyRequest(groupDN, nil)
	member.Add("member", []string{userDN})
	if err := s.store.Modify(ctx, []*ldap.ModifyRequest{member}); err != nil {
		return Fatalf(PhaseNewUser, err, "Failed to modify %s", groupDN)
	}

	if err := s.enableAccount(ctx, userDN); err != nil {
		return Fatalf(PhaseNewUser, err, "enable %s", userDN)
	}
	if err := s.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// allocateRID returns the domain's next RID and advances the counter.
func (s *Session) allocateRID(ctx context.Context, domainDN string) (int, error) {
	v, err := s.searchOne(ctx, domainDN, db.ScopeBase, "nextRid=*", "nextRid")
	if err != nil {
		return 0, err
	}
	rid, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("nextRid %q: %w", v, err)
	}
	mod := ldap.NewModifyRequest(domainDN, nil)
	mod.Changes = append(mod.Changes, ldap.Change{
		Operation:    ldap.IncrementAttribute,
		Modification: ldap.PartialAttribute{Type: "nextRid", Vals: []string{"1"}},
	})
	if err := s.store.Modify(ctx, []*ldap.ModifyRequest{mod}); err != nil {
		return 0, err
	}
	return rid, nil
}

// enableAccount clears the disabled bit in userAccountControl.
func (s *Session) enableAccount(ctx context.Context, dn string) error {
	v, err := s.searchOne(ctx, dn, db.ScopeBase, "", "userAccountControl")
	if err != nil {
		return err
	}
	uac, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("userAccountControl %q: %w", v, err)
	}
	mod := ldap.NewModifyRequest(dn, nil)
	mod.Replace("userAccountControl", []string{strconv.FormatUint(uac&^ufAccountDisable, 10)})
	return s.store.Modify(ctx, []*ldap.ModifyRequest{mod})
}

func escapeRDNValue(v string) string {
	var b strings.Builder
	for i, r := range v {
		switch {
		case strings.ContainsRune(`,+"\<>;=`, r):
			b.WriteByte('\\')
		case i == 0 && (r == '#' || r == ' '):
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func ldapEscape(v string) string { return ldap.EscapeFilter(v) }
