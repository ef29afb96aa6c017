// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toeirei/dcprovision/internal/bootstrap"
	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/keytab"
	"github.com/toeirei/dcprovision/internal/nss"
	"github.com/toeirei/dcprovision/internal/setup"
	"github.com/toeirei/dcprovision/internal/state"
)

// domainFlags select and override the domain a command works on.
type domainFlags struct {
	realm    string
	domain   string
	hostName string
	baseDN   string
	hostIP   string
}

func (f *domainFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.realm, "realm", "", "Kerberos realm, e.g. SAMBA.EXAMPLE.COM")
	fl.StringVar(&f.domain, "domain", "", "NetBIOS domain name (workgroup)")
	fl.StringVar(&f.hostName, "host-name", "", "Host name of this domain controller")
	fl.StringVar(&f.baseDN, "base-dn", "", "Base DN, derived from the realm when empty")
	fl.StringVar(&f.hostIP, "host-ip", "", "IPv4 address published in the DNS zone")
}

// configOverrides are folded into the configuration defaults so a first run
// without a config file still knows its realm and workgroup.
func (f *domainFlags) configOverrides() map[string]string {
	out := map[string]string{}
	if f.realm != "" {
		out[config.KeyRealm] = f.realm
	}
	if f.domain != "" {
		out[config.KeyWorkgroup] = f.domain
	}
	return out
}

func (f *domainFlags) apply(c setup.Context) {
	if f.realm != "" {
		realm := strings.ToUpper(f.realm)
		c.Set("REALM", realm)
		c.Set("DNSDOMAIN", strings.ToLower(realm))
		c.Set("BASEDN", bootstrap.BaseDNFromDomain(strings.ToLower(realm)))
	}
	setIf(c, "DOMAIN", f.domain)
	setIf(c, "HOSTNAME", f.hostName)
	c.Set("DNSNAME", strings.ToLower(c.String("HOSTNAME"))+"."+c.String("DNSDOMAIN"))
	setIf(c, "BASEDN", f.baseDN)
	setIf(c, "HOSTIP", f.hostIP)
}

func setIf(c setup.Context, name, v string) {
	if v != "" {
		c.Set(name, v)
	}
}

// identities resolves the local accounts the bootstrap context names.
// Tests replace it with a static table.
var identities nss.Lookup = nss.System{}

// newRun loads configuration, guesses the bootstrap context and applies the
// domain overrides.
func newRun(cmd *cobra.Command, df *domainFlags) (*env, *bootstrap.RunInfo, error) {
	e, err := loadEnv(cmd, df.configOverrides())
	if err != nil {
		return nil, nil, err
	}
	rnd := bootstrap.NewRandom(nil)
	clock := bootstrap.SystemClock{}
	g := &bootstrap.Guesser{Params: e.params, NSS: identities, Rand: rnd, Clock: clock}
	c, err := g.Guess()
	if err != nil {
		return nil, nil, err
	}
	df.apply(c)

	quiet, _ := cmd.Flags().GetBool("quiet")
	paths := bootstrap.DefaultPaths(e.params, c.String("DNSDOMAIN"))
	ri := &bootstrap.RunInfo{
		Context:   c,
		Sink:      consoleSink{w: cmd.OutOrStdout(), quiet: quiet},
		Params:    e.params,
		Paths:     paths,
		Open:      e.opener(),
		Keytab:    keytab.New(e.cfg.Keytab.Command, paths.Secrets),
		Clock:     clock,
		Templates: setup.New(e.cfg.SetupDir),
		Rand:      rnd,
	}
	return e, ri, nil
}

func newProvisionCmd() *cobra.Command {
	var (
		df          domainFlags
		adminPass   string
		krbtgtPass  string
		machinePass string
		domainSID   string
		domainGUID  string
		hostGUID    string
		ldapBackend string
		blank       bool
	)
	cmd := &cobra.Command{
		Use:   "provision",
		Short: i18n.T("cli.provision_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ri, err := newRun(cmd, &df)
			if err != nil {
				return err
			}
			c := ri.Context
			defer state.Secrets.Clear()
			for _, s := range []struct{ name, secret, label, value string }{
				{"ADMINPASS", state.AdminPass, "Administrator", adminPass},
				{"KRBTGTPASS", state.KrbtgtPass, "krbtgt", krbtgtPass},
				{"MACHINEPASS", state.MachinePass, c.String("HOSTNAME"), machinePass},
			} {
				v, err := readSecret(cmd, s.secret, s.label, s.value)
				if err != nil {
					return err
				}
				setIf(c, s.name, v)
			}
			setIf(c, "DOMAINSID", domainSID)
			setIf(c, "DOMAINGUID", domainGUID)
			setIf(c, "HOSTGUID", hostGUID)
			if ldapBackend != "" {
				c.Set("LDAPBACKEND", ldapBackend)
				c.Set("LDAPMODULES", "normalise,entryUUID")
				c.Set("EXTENSIBLEOBJECT", "objectClass: extensibleObject")
			}

			if err := bootstrap.Validate(c, ri.Params); err != nil {
				return err
			}
			if _, err := bootstrap.Provision(cmd.Context(), ri, bootstrap.Options{Blank: blank}); err != nil {
				return err
			}
			if adminPass == "" {
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(i18n.T("cli.admin_password", c.String("ADMINPASS"))))
			}
			return nil
		},
	}
	df.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&adminPass, "admin-pass", "", `Administrator password ("-" to prompt)`)
	fl.StringVar(&krbtgtPass, "krbtgt-pass", "", `krbtgt password ("-" to prompt)`)
	fl.StringVar(&machinePass, "machine-pass", "", `Machine account password ("-" to prompt)`)
	fl.StringVar(&domainSID, "domain-sid", "", "Domain SID, generated when empty")
	fl.StringVar(&domainGUID, "domain-guid", "", "Domain GUID, generated when empty")
	fl.StringVar(&hostGUID, "host-guid", "", "Host GUID, generated when empty")
	fl.StringVar(&ldapBackend, "ldap-backend", "", "LDAP server holding the base DN partition")
	fl.BoolVar(&blank, "blank", false, "Create a blank instance without users, groups or name mappings")
	return cmd
}
