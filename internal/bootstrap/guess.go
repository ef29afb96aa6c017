// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"net"
	"os"
	"strings"

	"github.com/toeirei/dcprovision/buildvars"
	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/nss"
	"github.com/toeirei/dcprovision/internal/setup"
)

// DefaultSite is the site every new domain controller joins.
const DefaultSite = "Default-First-Site-Name"

// Guesser derives a complete bootstrap context from configuration and the
// local host. Zero-valued collaborators fall back to the real system.
type Guesser struct {
	Params   Params
	NSS      nss.Lookup
	Rand     *Random
	Clock    Clock
	Hostname func() (string, error)
	HostIP   func() string
}

// Guess builds the context. Missing realm, workgroup or hostname and
// unresolvable local identities are fatal.
func (g *Guesser) Guess() (setup.Context, error) {
	g.defaults()
	c := setup.Context{}

	realm := strings.ToUpper(g.Params.Get(config.KeyRealm))
	domain := g.Params.Get(config.KeyWorkgroup)
	host, err := g.Hostname()
	if err != nil {
		return nil, Fatalf(PhaseGuess, err, "determine hostname")
	}
	host = shortHost(host)
	switch {
	case realm == "":
		return nil, Fatalf(PhaseGuess, nil, "no realm configured")
	case domain == "":
		return nil, Fatalf(PhaseGuess, nil, "no workgroup configured")
	case host == "":
		return nil, Fatalf(PhaseGuess, nil, "empty hostname")
	}
	c.Set("REALM", realm)
	c.Set("DOMAIN", domain)
	c.Set("HOSTNAME", host)
	c.Set("VERSION", buildvars.VersionOrDefault("dev"))
	c.Set("HOSTIP", g.HostIP())

	sid, err := g.Rand.SID()
	if err != nil {
		return nil, Fatalf(PhaseGuess, err, "generate domain SID")
	}
	c.Set("DOMAINSID", sid)
	invocation, err := g.Rand.GUID()
	if err != nil {
		return nil, Fatalf(PhaseGuess, err, "generate invocation id")
	}
	c.Set("INVOCATIONID", invocation)
	for _, name := range []string{"KRBTGTPASS", "MACHINEPASS", "ADMINPASS"} {
		pass, err := g.Rand.Password(12)
		if err != nil {
			return nil, Fatalf(PhaseGuess, err, "generate %s", name)
		}
		c.Set(name, pass)
	}
	c.Set("DEFAULTSITE", DefaultSite)
	g.bindGenerators(c)

	lookups := []struct {
		name       string
		fn         nss.LookupFunc
		candidates []string
	}{
		{"ROOT", g.NSS.ByUserName, []string{"root"}},
		{"NOBODY", g.NSS.ByUserName, []string{"nobody"}},
		{"NOGROUP", g.NSS.ByGroupName, []string{"nogroup", "nobody"}},
		{"WHEEL", g.NSS.ByGroupName, []string{"wheel", "root", "staff", "adm"}},
		{"BACKUP", g.NSS.ByGroupName, []string{"backup", "wheel", "root", "staff"}},
		{"USERS", g.NSS.ByGroupName, []string{"users", "guest", "other", "unknown", "usr"}},
	}
	for _, l := range lookups {
		v, err := nss.ResolveFirst(l.fn, l.candidates...)
		if err != nil {
			return nil, Fatalf(PhaseGuess, err, "resolve %s", l.name)
		}
		c.Set(l.name, v)
	}

	dnsDomain := strings.ToLower(realm)
	c.Set("DNSDOMAIN", dnsDomain)
	c.Set("DNSNAME", strings.ToLower(host)+"."+dnsDomain)
	c.Set("BASEDN", BaseDNFromDomain(dnsDomain))
	c.Set("LDAPBACKEND", "users.ldb")
	c.Set("LDAPMODULES", "objectguid")
	c.Set("EXTENSIBLEOBJECT", "# no objectClass: extensibleObject for local ldb")
	return c, nil
}

// bindGenerators installs the placeholders that produce a fresh value on
// every occurrence.
func (g *Guesser) bindGenerators(c setup.Context) {
	clock := g.Clock
	c.SetGenerator("NEWGUID", g.Rand.MustGUID)
	c.SetGenerator("NTTIME", func() string { return NTTime(clock.Now()) })
	c.SetGenerator("LDAPTIME", func() string { return LDAPTime(clock.Now()) })
	c.SetGenerator("DATESTRING", func() string { return DateString(clock.Now()) })
}

func (g *Guesser) defaults() {
	if g.NSS == nil {
		g.NSS = nss.System{}
	}
	if g.Rand == nil {
		g.Rand = NewRandom(nil)
	}
	if g.Clock == nil {
		g.Clock = SystemClock{}
	}
	if g.Hostname == nil {
		g.Hostname = os.Hostname
	}
	if g.HostIP == nil {
		g.HostIP = hostIP
	}
}

// BaseDNFromDomain turns example.com into DC=example,DC=com.
func BaseDNFromDomain(dnsDomain string) string {
	return "DC=" + strings.Join(strings.Split(dnsDomain, "."), ",DC=")
}

func shortHost(h string) string {
	if i := strings.IndexByte(h, '.'); i >= 0 {
		return h[:i]
	}
	return h
}

// hostIP returns the first non-loopback IPv4 address, or 127.0.0.1.
func hostIP() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipn, ok := a.(*net.IPNet)
			if !ok || ipn.IP.IsLoopback() {
				continue
			}
			if v4 := ipn.IP.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return "127.0.0.1"
}
