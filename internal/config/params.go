// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Params is the string-keyed configuration view consumed by the provisioning
// phases. It can be reloaded after the configuration file has been written.
type Params struct {
	mu       sync.RWMutex
	v        *viper.Viper
	path     string
	defaults map[string]any
}

// NewParams builds a Params over an explicit configuration file path. The
// file does not need to exist yet.
func NewParams(path string, defaults map[string]any) (*Params, error) {
	p := &Params{path: path, defaults: defaults}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the string value of key, or "" when unset. The key
// "config_file" resolves to the configuration file path itself.
func (p *Params) Get(key string) string {
	if key == KeyConfigFile {
		return p.path
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.v == nil {
		return ""
	}
	return strings.TrimSpace(p.v.GetString(key))
}

// Set overrides key for the lifetime of this Params (until the next Reload).
func (p *Params) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.v == nil {
		p.v = viper.New()
	}
	p.v.Set(key, value)
}

// Reload re-reads the configuration file. A missing file leaves only the
// defaults and environment in place.
func (p *Params) Reload() error {
	v := newViper(p.defaults, nil)
	if p.path != "" {
		v.SetConfigFile(p.path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reload %s: %w", p.path, err)
			}
		}
	}
	p.mu.Lock()
	p.v = v
	p.mu.Unlock()
	return nil
}

// PrivatePath resolves name relative to the configured private directory.
// Absolute names and store URLs are returned unchanged.
func (p *Params) PrivatePath(name string) string {
	return ResolvePrivate(p.Get(KeyPrivateDir), name)
}

// ResolvePrivate joins name onto dir unless name is absolute or a URL.
func ResolvePrivate(dir, name string) string {
	if name == "" || filepath.IsAbs(name) || strings.Contains(name, "://") {
		return name
	}
	return filepath.Join(dir, name)
}
