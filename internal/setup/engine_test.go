// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package setup

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func memEngine(t *testing.T, files map[string]string) *Engine {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}
	return &Engine{FS: fs}
}

func fullContext() Context {
	ctx := Context{}
	for k, v := range map[string]string{
		"REALM": "SAMBA.EXAMPLE.COM", "DOMAIN": "SAMBA", "HOSTNAME": "dc1", "NETBIOSNAME": "DC1",
		"VERSION": "test", "HOSTIP": "192.0.2.10", "DOMAINSID": "S-1-5-21-1-2-3",
		"INVOCATIONID": "3e8c1f4a-0000-4000-8000-000000000001", "KRBTGTPASS": "k", "MACHINEPASS": "m",
		"ADMINPASS": "a", "DEFAULTSITE": "Default-First-Site-Name", "ROOT": "root", "NOBODY": "nobody",
		"NOGROUP": "nogroup", "WHEEL": "wheel", "BACKUP": "backup", "USERS": "users",
		"DNSDOMAIN": "samba.example.com", "DNSNAME": "dc1.samba.example.com",
		"BASEDN": "DC=samba,DC=example,DC=com", "RDN_DC": "samba", "LDAPBACKEND": "users.ldb",
		"LDAPMODULES": "objectguid", "EXTENSIBLEOBJECT": "# no objectClass: extensibleObject for local ldb",
		"DOMAINGUID_MOD": "", "HOSTGUID_ADD": "objectGUID: 3e8c1f4a-0000-4000-8000-000000000002",
		"DOMAINGUID": "3e8c1f4a-0000-4000-8000-000000000003", "HOSTGUID": "3e8c1f4a-0000-4000-8000-000000000002",
	} {
		ctx.Set(k, v)
	}
	n := 0
	ctx.SetGenerator("NEWGUID", func() string { n++; return fmt.Sprintf("00000000-0000-4000-8000-%012d", n) })
	ctx.SetGenerator("NTTIME", func() string { return "133000000000000000" })
	ctx.SetGenerator("LDAPTIME", func() string { return "20260101120000.0Z" })
	ctx.SetGenerator("DATESTRING", func() string { return "2026010112" })
	return ctx
}

func TestSubstitute(t *testing.T) {
	ctx := Context{}
	ctx.Set("REALM", "EXAMPLE.COM")
	out, err := Substitute("realm = ${REALM}; cost = $5; ${REALM}", ctx)
	require.NoError(t, err)
	require.Equal(t, "realm = EXAMPLE.COM; cost = $5; EXAMPLE.COM", out)
}

func TestSubstitute_MissingNamesAreSortedAndUnique(t *testing.T) {
	_, err := Substitute("${ZETA} ${ALPHA} ${ZETA}", Context{})
	var me *MissingError
	require.True(t, errors.As(err, &me))
	require.Equal(t, []string{"ALPHA", "ZETA"}, me.Names)
}

func TestSubstitute_GeneratorRunsPerOccurrence(t *testing.T) {
	calls := 0
	ctx := Context{}
	ctx.SetGenerator("NEWGUID", func() string { calls++; return fmt.Sprint(calls) })
	out, err := Substitute("${NEWGUID},${NEWGUID},${NEWGUID}", ctx)
	require.NoError(t, err)
	require.Equal(t, "1,2,3", out)
	require.Equal(t, 3, calls)
}

func TestRender_NamesTemplateInError(t *testing.T) {
	e := memEngine(t, map[string]string{"x.ldif": "dn: ${BASEDN}\n"})
	_, err := e.Render("x.ldif", Context{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "x.ldif")
	require.Contains(t, err.Error(), "BASEDN")

	_, err = e.Render("missing.ldif", Context{})
	require.Error(t, err)
}

func TestRenderFile_ReplacesExisting(t *testing.T) {
	e := memEngine(t, map[string]string{"zone": "$ORIGIN ${DNSDOMAIN}.\n"})
	out := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(out, "/private/old.zone", []byte("stale"), 0o644))

	ctx := Context{}
	ctx.Set("DNSDOMAIN", "example.com")
	require.NoError(t, e.RenderFile(out, "zone", "/private/old.zone", ctx, 0o644))
	data, err := afero.ReadFile(out, "/private/old.zone")
	require.NoError(t, err)
	require.Equal(t, "$ORIGIN example.com.\n", string(data))
}

func TestNew_OverlayPrefersSetupDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), dir+"/share.ldif", []byte("dn: CN=custom\ncn: custom\n"), 0o644))

	e := New(dir)
	text, err := e.Load("share.ldif")
	require.NoError(t, err)
	require.Contains(t, text, "CN=custom")

	text, err = e.Load("secrets.ldif")
	require.NoError(t, err, "files absent from the setup dir come from the built-in set")
	require.Contains(t, text, "Primary Domains")
}

func TestBuiltinTemplatesRenderAndParse(t *testing.T) {
	e := New("")
	names := []string{
		"share.ldif", "secrets.ldif", "hklm.ldif", "provision_partitions.ldif",
		"provision_init.ldif", "provision_basedn.ldif", "provision_basedn_modify.ldif",
		"schema_samba4.ldif", "schema.ldif", "display_specifiers.ldif",
		"provision_templates.ldif", "provision.ldif", "provision_users.ldif",
		"provision_index.ldif",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			recs, err := e.RenderLDIF(name, fullContext())
			require.NoError(t, err)
			require.NotEmpty(t, recs)
		})
	}

	for _, name := range []string{"provision.zone", "provision.conf.yaml"} {
		text, err := e.Render(name, fullContext())
		require.NoError(t, err, name)
		require.NotContains(t, text, "${", name)
	}
}

func TestBasednModify_GUIDFragment(t *testing.T) {
	e := New("")
	ctx := fullContext()
	ctx.Set("DOMAINGUID_MOD", "replace: objectGUID\nobjectGUID: 3e8c1f4a-0000-4000-8000-000000000003\n-")
	recs, err := e.RenderLDIF("provision_basedn_modify.ldif", ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Modify)
	last := recs[0].Modify.Changes[len(recs[0].Modify.Changes)-1]
	require.Equal(t, "objectGUID", last.Modification.Type)
}

func TestRender_DeterministicForStaticContexts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("render(T, ctx) == render(T, ctx)", prop.ForAll(
		func(names []string, values []string) bool {
			ctx := Context{}
			var tmpl strings.Builder
			for i, n := range names {
				v := ""
				if i < len(values) {
					v = values[i]
				}
				ctx.Set(n, v)
				tmpl.WriteString("x ${" + n + "} ")
			}
			a, errA := Substitute(tmpl.String(), ctx)
			b, errB := Substitute(tmpl.String(), ctx)
			return errA == nil && errB == nil && a == b
		},
		gen.SliceOf(gen.Identifier()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestContext(t *testing.T) {
	ctx := Context{}
	ctx.Set("A", "1")
	ctx.SetGenerator("G", func() string { return "g" })

	v, ok := ctx.Get("A")
	require.True(t, ok)
	require.Equal(t, "1", v)
	_, ok = ctx.Get("G")
	require.False(t, ok)
	require.True(t, ctx.IsGenerator("G"))
	require.Equal(t, "", ctx.String("missing"))
	require.Equal(t, []string{"A", "G"}, ctx.Names())

	c2 := ctx.Clone()
	c2.Set("A", "2")
	require.Equal(t, "1", ctx.String("A"))
}
