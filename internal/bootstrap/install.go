// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"os"

	"github.com/toeirei/dcprovision/internal/config"
	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/logging"
)

// InstallOK reports whether a previous provisioning run left a usable main
// store: a realm is configured, the store opens and holds exactly one
// Administrator record.
func InstallOK(ctx context.Context, p Params, open db.Opener) bool {
	if p.Get(config.KeyRealm) == "" {
		return false
	}
	if open == nil {
		open = db.Open
	}
	location := DefaultPaths(p, "").SamDB
	if !db.IsRemote(location) {
		if _, err := os.Stat(location); err != nil {
			return false
		}
	}
	s := open(location)
	if err := s.Connect(ctx, location); err != nil {
		logging.Debugf("install check: %v", err)
		return false
	}
	defer func() { _ = s.Close() }()
	res, err := s.Search(ctx, "", db.ScopeSubtree, "(cn=Administrator)", []string{"dn"})
	if err != nil {
		logging.Debugf("install check: %v", err)
		return false
	}
	return len(res) == 1
}
