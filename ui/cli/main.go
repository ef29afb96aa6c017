// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, the shared flags and the configuration
// loading every subcommand goes through.

package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toeirei/dcprovision/buildvars"
	"github.com/toeirei/dcprovision/internal/bootstrap"
	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/logging"
)

var gitCommit = "dev" // set at build time with the short commit SHA
var buildDate = ""    // set at build time (RFC3339)

// env is what a subcommand needs after configuration has been loaded.
type env struct {
	cfg    config.Config
	params *config.Params
}

// flagKeys maps persistent flags onto configuration keys. Changed flags are
// folded into the defaults so they survive a reload of the config file.
var flagKeys = map[string]string{
	"private-dir":  config.KeyPrivateDir,
	"sam-database": config.KeySamDatabase,
	"setup-dir":    config.KeySetupDir,
	"language":     config.KeyLanguage,
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	return &path, nil
}

// loadEnv reads configuration for cmd. A missing file is fine; provisioning
// creates it.
func loadEnv(cmd *cobra.Command, extra map[string]string) (*env, error) {
	explicit, err := getConfigPathFromCli(cmd)
	if err != nil {
		return nil, err
	}
	defaults := config.Defaults()
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			defaults[key] = f.Value.String()
		}
	}
	for key, v := range extra {
		defaults[key] = v
	}

	cfg, params, err := config.LoadConfig[config.Config](nil, defaults, explicit)
	if err != nil && !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	i18n.Init(cfg.Language)
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose || cfg.Debug {
		logging.SetDebug(true)
		db.SetDebug(true)
	}
	logging.Debugf("configuration file: %s", params.Get(config.KeyConfigFile))
	return &env{cfg: cfg, params: params}, nil
}

// opener returns stores with LDAP credentials from the configuration applied.
func (e *env) opener() db.Opener {
	return func(location string) db.Store {
		s := db.Open(location)
		if ls, ok := s.(*db.LDAPStore); ok && e.cfg.LDAP.BindDN != "" {
			ls.SetCredentials(e.cfg.LDAP.BindDN, e.cfg.LDAP.BindPassword)
		}
		return s
	}
}

// Execute runs the CLI. Failures are printed with their operator hint and
// returned so main can set the exit status.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		printFailure(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

func printFailure(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("error: "+err.Error()))
	if hint := bootstrap.HintOf(err); hint != "" {
		fmt.Fprintln(w, hintStyle.Render(hint))
	}
}

// NewRootCmd creates the root command. Tests build a fresh tree per run.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dcprovision",
		Short: "Provision a directory service domain controller",
		Long: `dcprovision builds the stores a directory service domain controller needs:
configuration, secrets, registry and the main directory store with schema,
seed users and groups. It can also write a DNS zone and an LDAP base record
for an existing installation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v, c, d := resolveBuildVersion(nil)
	compositeVersion := v
	if c != "" && c != "dev" {
		compositeVersion = compositeVersion + " (" + c + ")"
	}
	if d != "" {
		compositeVersion = compositeVersion + " built: " + d
	}
	cmd.Version = compositeVersion

	pf := cmd.PersistentFlags()
	pf.String("config", "", "config file")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Only print failures")
	pf.String("language", "en", `Message language ("en", "de")`)
	pf.String("private-dir", "", "Directory holding the stores")
	pf.String("sam-database", "", "Main store location (file, postgres://, mysql:// or ldap:// URL)")
	pf.String("setup-dir", "", "Directory with template overrides")

	cmd.AddCommand(
		newProvisionCmd(),
		newDNSCmd(),
		newLDAPBaseCmd(),
		newNewUserCmd(),
		newCheckCmd(),
		newExportCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("cli.version_short"),
		Run: func(cmd *cobra.Command, args []string) {
			v, c, d := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If info is nil it is read from the runtime.
func resolveBuildVersion(info *debug.BuildInfo) (versionOut, commitOut, dateOut string) {
	resolvedVersion := buildvars.VersionOrDefault("dev")
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	var ok bool
	if info == nil {
		if infoLocal, found := debug.ReadBuildInfo(); found {
			info = infoLocal
			ok = true
		}
	} else {
		ok = true
	}

	if ok && info != nil {
		if resolvedVersion == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			resolvedVersion = info.Main.Version
		}
		if resolvedVersion == "dev" || resolvedVersion == "(devel)" {
			for _, dep := range info.Deps {
				if dep.Path == "github.com/toeirei/dcprovision" && dep.Version != "" {
					resolvedVersion = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
