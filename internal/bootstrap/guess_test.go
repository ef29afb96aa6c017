// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/nss"
	"github.com/toeirei/dcprovision/internal/setup"
)

func guessParams() *mapParams {
	return &mapParams{values: map[string]string{
		config.KeyRealm:     "samba.example.com",
		config.KeyWorkgroup: "SAMBA",
	}}
}

func TestGuess_DerivesNames(t *testing.T) {
	c, err := testGuesser(guessParams()).Guess()
	require.NoError(t, err)

	want := map[string]string{
		"REALM":       "SAMBA.EXAMPLE.COM",
		"DOMAIN":      "SAMBA",
		"HOSTNAME":    "DC1",
		"HOSTIP":      "192.0.2.10",
		"DNSDOMAIN":   "samba.example.com",
		"DNSNAME":     "dc1.samba.example.com",
		"BASEDN":      testBaseDN,
		"DEFAULTSITE": DefaultSite,
		"ROOT":        "root",
		"NOBODY":      "nobody",
		"NOGROUP":     "nogroup",
		"WHEEL":       "staff",
		"BACKUP":      "staff",
		"USERS":       "users",
		"LDAPBACKEND": "users.ldb",
	}
	for k, v := range want {
		require.Equal(t, v, c.String(k), k)
	}
	require.True(t, strings.HasPrefix(c.String("DOMAINSID"), "S-1-5-21-"))
	for _, k := range []string{"KRBTGTPASS", "MACHINEPASS", "ADMINPASS"} {
		require.Len(t, c.String(k), 12, k)
	}
	require.NotEqual(t, c.String("KRBTGTPASS"), c.String("ADMINPASS"))
	require.NotEqual(t, c.String("MACHINEPASS"), c.String("ADMINPASS"))
	for _, k := range []string{"NEWGUID", "NTTIME", "LDAPTIME", "DATESTRING"} {
		require.True(t, c.IsGenerator(k), k)
	}
}

func TestGuess_GeneratorsFollowClock(t *testing.T) {
	c, err := testGuesser(guessParams()).Guess()
	require.NoError(t, err)
	render := func(name string) string { return c[name].(setup.Generator)() }

	require.Equal(t, "20260314092653.0Z", render("LDAPTIME"))
	require.Equal(t, "2026031409", render("DATESTRING"))
	require.Equal(t, NTTime(testTime), render("NTTIME"))
	require.NotEqual(t, render("NEWGUID"), render("NEWGUID"))
}

func TestGuess_MissingSettingsAreFatal(t *testing.T) {
	for _, key := range []string{config.KeyRealm, config.KeyWorkgroup} {
		p := guessParams()
		delete(p.values, key)
		_, err := testGuesser(p).Guess()
		require.Error(t, err, key)
		require.True(t, IsFatal(err))
	}

	g := testGuesser(guessParams())
	g.Hostname = func() (string, error) { return "", errors.New("uts namespace gone") }
	_, err := g.Guess()
	require.ErrorContains(t, err, "uts namespace gone")
}

func TestGuess_UnresolvableIdentityIsFatal(t *testing.T) {
	g := testGuesser(guessParams())
	g.NSS = nss.Static{Users: []string{"root", "nobody"}, Groups: []string{"nogroup", "users"}}

	_, err := g.Guess()
	require.Error(t, err)
	require.True(t, IsFatal(err))
	var ex *nss.ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Equal(t, []string{"wheel", "root", "staff", "adm"}, ex.Candidates)
}

func TestBaseDNFromDomain(t *testing.T) {
	require.Equal(t, "DC=example,DC=com", BaseDNFromDomain("example.com"))
	require.Equal(t, "DC=lan", BaseDNFromDomain("lan"))
}

func TestValidate(t *testing.T) {
	ok := func() *mapParams { return guessParams() }
	c, err := testGuesser(guessParams()).Guess()
	require.NoError(t, err)
	require.NoError(t, Validate(c, ok()))

	long := c.Clone()
	long.Set("DOMAIN", "FOURTEENCHARSX")
	p := ok()
	p.values[config.KeyWorkgroup] = "FOURTEENCHARSX"
	require.Error(t, Validate(long, p))

	longHost := c.Clone()
	longHost.Set("HOSTNAME", "averyveryverylonghost")
	require.Error(t, Validate(longHost, ok()))

	p = ok()
	p.values[config.KeyWorkgroup] = "OTHER"
	err = Validate(c, p)
	require.ErrorContains(t, err, "workgroup")

	p = ok()
	p.values[config.KeyRealm] = "other.example.com"
	err = Validate(c, p)
	require.ErrorContains(t, err, "realm")

	p = ok()
	p.values[config.KeyWorkgroup] = "samba"
	require.NoError(t, Validate(c, p))
}

func TestCheckContext(t *testing.T) {
	c, err := testGuesser(guessParams()).Guess()
	require.NoError(t, err)
	require.NoError(t, CheckContext(c))
	for _, name := range []string{"REALM", "DOMAIN", "HOSTNAME", "BASEDN"} {
		broken := c.Clone()
		delete(broken, name)
		require.Error(t, CheckContext(broken), name)
	}
}
