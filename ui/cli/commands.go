// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/toeirei/dcprovision/internal/bootstrap"
	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/state"
)

// ErrNotInstalled is returned by check when the install is unusable.
var ErrNotInstalled = errors.New("install not usable")

func newDNSCmd() *cobra.Command {
	var df domainFlags
	cmd := &cobra.Command{
		Use:   "dns",
		Short: i18n.T("cli.dns_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ri, err := newRun(cmd, &df)
			if err != nil {
				return err
			}
			return bootstrap.ProvisionDNS(cmd.Context(), ri)
		},
	}
	df.register(cmd)
	return cmd
}

func newLDAPBaseCmd() *cobra.Command {
	var df domainFlags
	cmd := &cobra.Command{
		Use:   "ldapbase",
		Short: i18n.T("cli.ldapbase_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ri, err := newRun(cmd, &df)
			if err != nil {
				return err
			}
			return bootstrap.ProvisionLDAPBase(ri)
		},
	}
	df.register(cmd)
	return cmd
}

func newNewUserCmd() *cobra.Command {
	var unixName, password string
	cmd := &cobra.Command{
		Use:   "newuser NAME",
		Short: i18n.T("cli.newuser_short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, nil)
			if err != nil {
				return err
			}
			quiet, _ := cmd.Flags().GetBool("quiet")
			ri := bootstrap.NewRunInfo(nil, e.params, consoleSink{w: cmd.OutOrStdout(), quiet: quiet})
			ri.Paths = bootstrap.DefaultPaths(e.params, "")
			ri.Open = e.opener()

			defer state.Secrets.Clear()
			pass, err := readSecret(cmd, state.UserPass, args[0], password)
			if err != nil {
				return err
			}
			return bootstrap.NewUser(cmd.Context(), ri, args[0], unixName, pass)
		},
	}
	cmd.Flags().StringVar(&unixName, "unix-name", "", "Unix account the user maps to (defaults to NAME)")
	cmd.Flags().StringVar(&password, "password", "-", `Password ("-" to prompt)`)
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: i18n.T("cli.check_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, nil)
			if err != nil {
				return err
			}
			if !bootstrap.InstallOK(cmd.Context(), e.params, e.opener()) {
				fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render(i18n.T("cli.install_not_ok")))
				return ErrNotInstalled
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(i18n.T("cli.install_ok")))
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var out, base string
	var compress bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: i18n.T("cli.export_short"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, nil)
			if err != nil {
				return err
			}
			location := bootstrap.DefaultPaths(e.params, "").SamDB
			s := e.opener()(location)
			if err := s.Connect(cmd.Context(), location); err != nil {
				return fmt.Errorf("open %s: %w", location, err)
			}
			defer func() { _ = s.Close() }()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := db.Export(cmd.Context(), s, base, w, compress)
			if err != nil {
				return err
			}
			if w != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d records to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (stdout when empty)")
	cmd.Flags().StringVar(&base, "base", "", "Only export records below this DN")
	cmd.Flags().BoolVar(&compress, "zstd", false, "Compress the export with zstd")
	return cmd
}
