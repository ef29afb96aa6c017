// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/spf13/afero"

	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/logging"
)

// Phase names a step of a run. Failures carry the phase they happened in.
type Phase string

const (
	PhaseGuess        Phase = "guess"
	PhaseValidate     Phase = "validate"
	PhaseConfig       Phase = "config"
	PhaseShareConf    Phase = "shareconf"
	PhaseSecrets      Phase = "secrets"
	PhaseKeytabs      Phase = "keytabs"
	PhaseHKLM         Phase = "hklm"
	PhasePartitions   Phase = "partitions"
	PhaseAttributes   Phase = "attributes"
	PhaseErase        Phase = "erase"
	PhaseBaseDN       Phase = "basedn"
	PhaseSchema       Phase = "schema"
	PhaseReopen       Phase = "reopen"
	PhaseData         Phase = "data"
	PhaseUsers        Phase = "users"
	PhaseNameMappings Phase = "namemappings"
	PhaseIndex        Phase = "index"
	PhaseCommit       Phase = "commit"
	PhaseDNS          Phase = "dns"
	PhaseLDAPBase     Phase = "ldapbase"
	PhaseNewUser      Phase = "newuser"
)

// Options tune a provisioning run.
type Options struct {
	// Blank stops after the seed data and index, without users or name
	// mappings.
	Blank bool
}

// Report describes a finished or aborted run.
type Report struct {
	// Phases lists the phases that completed, in order.
	Phases []Phase
	Erase  []EraseResult
}

func (r *Report) done(p Phase) { r.Phases = append(r.Phases, p) }

// Provision wipes and rebuilds every store named in ri.Paths. It either
// returns nil after the final commit or the first fatal Failure. A failed
// name mapping does not stop the run; it is returned as a tolerated Failure
// after the final commit. Passwords waiting in ri.Secrets replace the
// context's and are consumed.
func Provision(ctx context.Context, ri *RunInfo, opts Options) (*Report, error) {
	ri.defaults()
	ri.takeSecrets()
	rep := &Report{}
	if err := CheckContext(ri.Context); err != nil {
		return rep, err
	}
	if err := PrepareContext(ri); err != nil {
		return rep, err
	}
	c := ri.Context

	if err := materializeConfig(ri); err != nil {
		return rep, err
	}
	rep.done(PhaseConfig)

	if ok, _ := afero.Exists(ri.Files, ri.Paths.ShareConf); !ok {
		ri.report("bootstrap.shareconf", ri.Paths.ShareConf)
		if err := setupStore(ctx, ri, PhaseShareConf, "share.ldif", ri.Paths.ShareConf); err != nil {
			return rep, err
		}
		rep.done(PhaseShareConf)
	}

	ri.report("bootstrap.secrets", ri.Paths.Secrets)
	if err := setupStore(ctx, ri, PhaseSecrets, "secrets.ldif", ri.Paths.Secrets); err != nil {
		return rep, err
	}
	rep.done(PhaseSecrets)

	ri.report("bootstrap.keytabs")
	if err := ri.Keytab.UpdateAll(ctx); err != nil {
		return rep, Fatalf(PhaseKeytabs, err, "update keytabs")
	}
	rep.done(PhaseKeytabs)

	ri.report("bootstrap.hklm", ri.Paths.HKLM)
	if err := setupStore(ctx, ri, PhaseHKLM, "hklm.ldif", ri.Paths.HKLM); err != nil {
		return rep, err
	}
	rep.done(PhaseHKLM)

	ri.report("bootstrap.partitions")
	if err := setupStore(ctx, ri, PhasePartitions, "provision_partitions.ldif", ri.Paths.SamDB); err != nil {
		return rep, err
	}
	rep.done(PhasePartitions)

	sam, err := OpenForBootstrap(ctx, ri, PhaseAttributes, ri.Paths.SamDB, false)
	if err != nil {
		return rep, err
	}
	committed := false
	defer func() {
		if sam != nil {
			sam.release(ctx, committed)
		}
	}()

	ri.report("bootstrap.attributes")
	if err := sam.ApplyTemplate(ctx, "provision_init.ldif", false); err != nil {
		return rep, err
	}
	rep.done(PhaseAttributes)

	ri.report("bootstrap.erase_partitions")
	sam.SetPhase(PhaseErase)
	rep.Erase, err = sam.ErasePartitions(ctx)
	if err != nil {
		return rep, err
	}
	rep.done(PhaseErase)

	if err := installBaseDN(ctx, ri, sam); err != nil {
		return rep, err
	}
	rep.done(PhaseBaseDN)

	sam.SetPhase(PhaseSchema)
	ri.report("bootstrap.schema_base")
	if err := sam.ApplyTemplate(ctx, "schema_samba4.ldif", false); err != nil {
		return rep, err
	}
	ri.report("bootstrap.schema_directory")
	if err := sam.ApplyTemplate(ctx, "schema.ldif", false); err != nil {
		return rep, err
	}
	rep.done(PhaseSchema)

	// Schema must be durable before data that references it goes in.
	if err := sam.Commit(ctx); err != nil {
		return rep, err
	}
	sam.release(ctx, true)
	sam, err = OpenForBootstrap(ctx, ri, PhaseReopen, ri.Paths.SamDB, false)
	if err != nil {
		return rep, err
	}
	rep.done(PhaseReopen)

	sam.SetPhase(PhaseData)
	for _, step := range []struct{ msg, tmpl string }{
		{"bootstrap.display_specifiers", "display_specifiers.ldif"},
		{"bootstrap.templates", "provision_templates.ldif"},
		{"bootstrap.data", "provision.ldif"},
	} {
		ri.report(step.msg)
		if err := sam.ApplyTemplate(ctx, step.tmpl, false); err != nil {
			return rep, err
		}
	}
	rep.done(PhaseData)

	var mappingErr error
	if !opts.Blank {
		sam.SetPhase(PhaseUsers)
		ri.report("bootstrap.users")
		if err := sam.ApplyTemplate(ctx, "provision_users.ldif", false); err != nil {
			return rep, err
		}
		rep.done(PhaseUsers)

		sam.SetPhase(PhaseNameMappings)
		if err := sam.EstablishNameMappings(ctx); err != nil {
			if IsFatal(err) {
				return rep, err
			}
			mappingErr = err
		} else {
			rep.done(PhaseNameMappings)
		}
	}

	sam.SetPhase(PhaseIndex)
	ri.report("bootstrap.index")
	if err := sam.ApplyTemplate(ctx, "provision_index.ldif", false); err != nil {
		return rep, err
	}
	rep.done(PhaseIndex)

	sam.SetPhase(PhaseCommit)
	if err := sam.Commit(ctx); err != nil {
		return rep, err
	}
	committed = true
	rep.done(PhaseCommit)

	if mappingErr != nil {
		return rep, mappingErr
	}
	ri.report("bootstrap.done", c.String("REALM"))
	return rep, nil
}

// installBaseDN adds the base DN record, which may already exist, and then
// rewrites its attributes. Only a failed rewrite is fatal.
func installBaseDN(ctx context.Context, ri *RunInfo, sam *Session) error {
	base := ri.Context.String("BASEDN")
	sam.SetPhase(PhaseBaseDN)
	ri.report("bootstrap.basedn_add", base)
	addErr := sam.ApplyTemplate(ctx, "provision_basedn.ldif", true)
	if addErr != nil && IsFatal(addErr) {
		return addErr
	}
	ri.report("bootstrap.basedn_modify", base)
	modErr := sam.ApplyTemplate(ctx, "provision_basedn_modify.ldif", true)
	if modErr == nil {
		return nil
	}
	if IsFatal(modErr) {
		return modErr
	}
	var cause error = modErr
	var mf *Failure
	if errors.As(modErr, &mf) && mf.Cause != nil {
		cause = mf.Cause
	}
	f := Fatalf(PhaseBaseDN, cause, "modify %s", base)
	if addErr != nil {
		ri.report("bootstrap.basedn_failed", base, ri.Context.String("LDAPBACKEND"))
		hint := i18n.T("bootstrap.basedn_hint")
		ri.Sink.Report(hint)
		f.WithHint(hint)
	}
	return f
}

// materializeConfig writes the configuration file unless one exists, then
// reloads the parameters from it. Store locations in effect for this run
// are persisted alongside the rendered settings.
func materializeConfig(ri *RunInfo) error {
	path := ri.Paths.ConfigFile
	if path == "" {
		logging.Debugf("no configuration file path, skipping")
		return nil
	}
	if ok, _ := afero.Exists(ri.Files, path); ok {
		return nil
	}
	ri.report("bootstrap.config", path)
	text, err := ri.Templates.Render("provision.conf.yaml", ri.Context)
	if err != nil {
		return Fatalf(PhaseConfig, err, "render configuration")
	}
	cfg, err := config.ParseConfig([]byte(text))
	if err != nil {
		return Fatalf(PhaseConfig, err, "render configuration")
	}
	cfg.PrivateDir = ri.Params.Get(config.KeyPrivateDir)
	cfg.SamDatabase = ri.Params.Get(config.KeySamDatabase)
	cfg.SetupDir = ri.Params.Get(config.KeySetupDir)
	if err := config.WriteConfigFile(ri.Files, &cfg, path); err != nil {
		return Fatalf(PhaseConfig, err, "write %s", path)
	}
	if err := ri.Params.Reload(); err != nil {
		return Fatalf(PhaseConfig, err, "reload configuration")
	}
	return nil
}

// setupStore erases the store at location and loads one template into it.
func setupStore(ctx context.Context, ri *RunInfo, phase Phase, tmpl, location string) error {
	s, err := OpenForBootstrap(ctx, ri, phase, location, true)
	if err != nil {
		return err
	}
	if err := s.ApplyTemplate(ctx, tmpl, false); err != nil {
		s.release(ctx, false)
		return err
	}
	err = s.Commit(ctx)
	s.release(ctx, err == nil)
	return err
}

// PrepareContext normalizes case and fills in the fields derived from the
// ones the caller supplied. It is safe to call more than once.
func PrepareContext(ri *RunInfo) error {
	c := ri.Context
	c.Set("REALM", strings.ToUpper(c.String("REALM")))
	c.Set("HOSTNAME", strings.ToLower(c.String("HOSTNAME")))
	c.Set("DOMAIN", strings.ToUpper(c.String("DOMAIN")))
	if !ValidNetbiosName(c.String("DOMAIN")) {
		return Fatalf(PhaseValidate, nil, "invalid NetBIOS name for domain %q", c.String("DOMAIN"))
	}
	c.Set("NETBIOSNAME", strings.ToUpper(c.String("HOSTNAME")))
	if !ValidNetbiosName(c.String("NETBIOSNAME")) {
		return Fatalf(PhaseValidate, nil, "invalid NetBIOS name for host %q", c.String("NETBIOSNAME"))
	}
	rdn, err := firstRDNValue(c.String("BASEDN"))
	if err != nil {
		return Fatalf(PhaseValidate, err, "parse base DN %q", c.String("BASEDN"))
	}
	c.Set("RDN_DC", rdn)

	if g := c.String("DOMAINGUID"); g != "" {
		c.Set("DOMAINGUID_MOD", fmt.Sprintf("replace: objectGUID\nobjectGUID: %s\n-", g))
	} else {
		c.Set("DOMAINGUID_MOD", "")
	}
	// The store does not assign GUIDs, so the host record always gets one.
	if _, ok := c.Get("HOSTGUID_ADD"); !ok {
		hg := c.String("HOSTGUID")
		if hg == "" {
			if hg, err = ri.Rand.GUID(); err != nil {
				return Fatalf(PhaseValidate, err, "generate host GUID")
			}
		}
		c.Set("HOSTGUID_ADD", "objectGUID: "+hg)
	}
	return nil
}

func firstRDNValue(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", err
	}
	if len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return "", fmt.Errorf("empty DN")
	}
	return parsed.RDNs[0].Attributes[0].Value, nil
}
