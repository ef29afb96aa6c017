// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDN(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"DC=Example, DC=COM", "dc=example,dc=com"},
		{"CN=Users,DC=example,DC=com", "cn=users,dc=example,dc=com"},
		{"cn=a\\,b,dc=example", "cn=a\\,b,dc=example"},
		{"CN=S-1-5-7,CN=ForeignSecurityPrincipals,DC=x", "cn=s-1-5-7,cn=foreignsecurityprincipals,dc=x"},
		{"@indexlist", "@INDEXLIST"},
	}
	for _, tc := range cases {
		got, err := NormalizeDN(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)
	}

	_, err := NormalizeDN("not a dn")
	require.ErrorIs(t, err, ErrInvalidDN)
}

func TestParentDN(t *testing.T) {
	require.Equal(t, "dc=example,dc=com", ParentDN("cn=users,dc=example,dc=com"))
	require.Equal(t, "dc=example", ParentDN("cn=a\\,b,dc=example"))
	require.Equal(t, "", ParentDN("dc=com"))
	require.Equal(t, "", ParentDN("@INDEXLIST"))
}

func TestIsDescendant(t *testing.T) {
	require.True(t, IsDescendant("cn=x,cn=users,dc=ex", "dc=ex"))
	require.True(t, IsDescendant("dc=ex", "dc=ex"))
	require.True(t, IsDescendant("dc=ex", ""))
	require.False(t, IsDescendant("dc=badex", "dc=ex"))
}

func TestNormalizeDN_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(labels []string) bool {
			if len(labels) == 0 {
				return true
			}
			dn := "DC=" + strings.Join(labels, ",DC=")
			once, err := NormalizeDN(dn)
			if err != nil {
				return false
			}
			twice, err := NormalizeDN(once)
			return err == nil && once == twice
		},
		gen.SliceOfN(4, gen.Identifier()),
	))

	properties.Property("parent of a child is the base", prop.ForAll(
		func(cn, dc string) bool {
			base, err := NormalizeDN("DC=" + dc)
			if err != nil {
				return false
			}
			child, err := NormalizeDN("CN=" + cn + ",DC=" + dc)
			return err == nil && ParentDN(child) == base && IsDescendant(child, base)
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
