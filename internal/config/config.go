// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config provides configuration loading and the key/value parameter
// view the provisioning phases read from. It uses Viper for file/env/flag
// parsing and goccy/go-yaml for validating rendered configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Well-known parameter keys.
const (
	KeyConfigFile   = "config_file"
	KeyRealm        = "realm"
	KeyWorkgroup    = "workgroup"
	KeyNetbiosName  = "netbios_name"
	KeyPrivateDir   = "private_dir"
	KeySetupDir     = "setup_dir"
	KeySamDatabase  = "sam_database"
	KeyLanguage     = "language"
	KeyKeytabCmd    = "keytab.command"
	KeyLDAPBindDN   = "ldap.bind_dn"
	KeyLDAPBindPass = "ldap.bind_password"
)

// Config is the typed view of a dcprovision configuration file.
type Config struct {
	Realm       string `mapstructure:"realm" yaml:"realm"`
	Workgroup   string `mapstructure:"workgroup" yaml:"workgroup"`
	NetbiosName string `mapstructure:"netbios_name" yaml:"netbios_name,omitempty"`
	PrivateDir  string `mapstructure:"private_dir" yaml:"private_dir,omitempty"`
	SetupDir    string `mapstructure:"setup_dir" yaml:"setup_dir,omitempty"`
	SamDatabase string `mapstructure:"sam_database" yaml:"sam_database,omitempty"`
	Language    string `mapstructure:"language" yaml:"language,omitempty"`
	Debug       bool   `mapstructure:"debug" yaml:"debug,omitempty"`
	Keytab      struct {
		Command string `mapstructure:"command" yaml:"command,omitempty"`
	} `mapstructure:"keytab" yaml:"keytab,omitempty"`
	LDAP struct {
		BindDN       string `mapstructure:"bind_dn" yaml:"bind_dn,omitempty"`
		BindPassword string `mapstructure:"bind_password" yaml:"bind_password,omitempty"`
	} `mapstructure:"ldap" yaml:"ldap,omitempty"`
}

// Defaults returns the default values applied beneath every config source.
func Defaults() map[string]any {
	return map[string]any{
		KeyPrivateDir:  DefaultPrivateDir(),
		KeySamDatabase: "sam.ldb",
		KeyLanguage:    "en",
	}
}

// DefaultPrivateDir is where stores live when no private_dir is configured.
func DefaultPrivateDir() string {
	return filepath.Join(xdg.DataHome, "dcprovision", "private")
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "dcprovision")
		default: // Linux, macOS, etc.
			configDir = "/etc/dcprovision"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "dcprovision")
	}

	return filepath.Join(configDir, "dcprovision.yaml"), nil
}

func newViper(defaults map[string]any, explicitPath *string) *viper.Viper {
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search paths
	v.SetConfigName("dcprovision")
	v.SetConfigType("yaml")

	// 3. An explicit config file path has the highest precedence for
	// file-based configuration.
	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}

	// 4. Add standard config locations
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	// 5. Environment variables
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("dcprovision")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// LoadConfig reads defaults, config files, environment and bound cobra flags
// into a T. A missing config file is reported as viper.ConfigFileNotFoundError
// together with the defaults-populated value; callers decide whether that is
// fatal (it is not on first run, where provisioning writes the file).
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, *Params, error) {
	var c T
	v := newViper(defaults, explicitPath)

	var readErr error
	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !(explicitPath != nil && errors.Is(err, os.ErrNotExist)) {
				return c, nil, err
			}
			err = viper.ConfigFileNotFoundError{}
		}
		readErr = err
	}

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, nil, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, nil, err
	}

	p := &Params{v: v, defaults: defaults}
	if explicitPath != nil {
		p.path = *explicitPath
	} else if used := v.ConfigFileUsed(); used != "" {
		p.path = used
	} else if userPath, err := GetConfigPath(false); err == nil {
		p.path = userPath
	}
	return c, p, readErr
}

// ParseConfig decodes and sanity-checks configuration file contents. It is
// used to validate rendered configuration before it is written to disk.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	if strings.TrimSpace(c.Realm) == "" {
		return c, fmt.Errorf("invalid configuration: realm is empty")
	}
	if strings.TrimSpace(c.Workgroup) == "" {
		return c, fmt.Errorf("invalid configuration: workgroup is empty")
	}
	return c, nil
}

// WriteConfigFile marshals c and writes it to path on fsys with 0600
// permissions, as the file may carry an LDAP bind password.
func WriteConfigFile[T any](fsys afero.Fs, c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := fsys.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	return afero.WriteFile(fsys, path, data, 0600)
}
