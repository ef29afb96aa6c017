// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package keytab

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	require.IsType(t, Noop{}, New("  ", ""))
	require.IsType(t, Command{}, New("ktutil-wrap", "/tmp/secrets.ldb"))
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.UpdateAll(context.Background()))
}

func TestCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "seen")
	script := filepath.Join(dir, "kt.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$DCPROVISION_SECRETS\" > \"$1\"\n"), 0o755))

	require.NoError(t, Command{Line: script + " " + out, SecretsPath: "/p/secrets.ldb"}.UpdateAll(context.Background()))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "/p/secrets.ldb\n", string(data))

	fail := filepath.Join(dir, "fail.sh")
	require.NoError(t, os.WriteFile(fail, []byte("#!/bin/sh\necho broken >&2\nexit 3\n"), 0o755))
	err = Command{Line: fail}.UpdateAll(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")

	require.Error(t, Command{}.UpdateAll(context.Background()))
}
