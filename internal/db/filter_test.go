// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchFilter(t *testing.T) {
	user := &record{ndn: "cn=administrator,cn=users,dc=example,dc=com", dn: "CN=Administrator,CN=Users,DC=example,DC=com", attrs: []storedAttr{
		{Name: "objectClass", Values: []string{"top", "person", "user"}},
		{Name: "cn", Values: []string{"Administrator"}},
		{Name: "objectSid", Values: []string{"S-1-5-21-1-2-3-500"}},
		{Name: "uSNChanged", Values: []string{"100"}},
	}}
	baseinfo := &record{ndn: "@BASEINFO", dn: "@BASEINFO", attrs: []storedAttr{{Name: "sequenceNumber", Values: []string{"1"}}}}

	cases := []struct {
		name   string
		filter string
		rec    *record
		want   bool
	}{
		{"empty matches all", "", baseinfo, true},
		{"present", "(objectClass=*)", user, true},
		{"present missing", "(objectClass=*)", baseinfo, false},
		{"unparenthesized", "objectSid=S-1-5-21-1-2-3-500", user, true},
		{"equality ignores case", "(objectclass=USER)", user, true},
		{"erase filter keeps records", "(&(|(objectclass=*)(dn=*))(!(dn=@BASEINFO)))", user, true},
		{"erase filter skips baseinfo", "(&(|(objectclass=*)(dn=*))(!(dn=@BASEINFO)))", baseinfo, false},
		{"dn equality normalizes", "(distinguishedName=cn=administrator, cn=users,dc=EXAMPLE,dc=com)", user, true},
		{"numeric ge", "(uSNChanged>=99)", user, true},
		{"numeric le beats string order", "(uSNChanged<=9)", user, false},
		{"substring initial", "(cn=Admin*)", user, true},
		{"substring any and final", "(cn=*dmin*tor)", user, true},
		{"substring miss", "(cn=*guest*)", user, false},
		{"or", "(|(cn=guest)(cn=administrator))", user, true},
		{"not", "(!(cn=administrator))", user, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := compileFilter(tc.filter)
			require.NoError(t, err)
			got, err := matchFilter(f, tc.rec)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestCompileFilter_Invalid(t *testing.T) {
	_, err := compileFilter("(&(cn=x)")
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestNormalizeFilter(t *testing.T) {
	require.Equal(t, "(objectClass=*)", normalizeFilter(" "))
	require.Equal(t, "(cn=x)", normalizeFilter("cn=x"))
	require.Equal(t, "(cn=x)", normalizeFilter("(cn=x)"))
}
