// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keytab materializes Kerberos keytabs after the secrets store has
// been written. The key derivation itself belongs to an external tool.
package keytab

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/toeirei/dcprovision/internal/logging"
)

// Updater regenerates every keytab referenced by the secrets store.
type Updater interface {
	UpdateAll(ctx context.Context) error
}

// Noop is used when no keytab command is configured.
type Noop struct{}

func (Noop) UpdateAll(context.Context) error {
	logging.Debugf("keytab: no command configured, skipping")
	return nil
}

// Command runs an external program, e.g. a site script wrapping ktutil.
type Command struct {
	// Line is split on whitespace; the first field is the program.
	Line string
	// SecretsPath is exported to the program as DCPROVISION_SECRETS.
	SecretsPath string
	Timeout     time.Duration
}

func (c Command) UpdateAll(ctx context.Context) error {
	fields := strings.Fields(c.Line)
	if len(fields) == 0 {
		return fmt.Errorf("keytab: empty command")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Env = append(os.Environ(), "DCPROVISION_SECRETS="+c.SecretsPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debugf("keytab: running %s", c.Line)
	err := cmd.Run()
	if stdout.Len() > 0 {
		logging.Debugf("keytab: %s", strings.TrimSpace(stdout.String()))
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("keytab command %q: %w", fields[0], err)
		}
		return fmt.Errorf("keytab command %q: %w: %s", fields[0], err, msg)
	}
	return nil
}

// New returns a Command for a non-empty line and Noop otherwise.
func New(line, secretsPath string) Updater {
	if strings.TrimSpace(line) == "" {
		return Noop{}
	}
	return Command{Line: line, SecretsPath: secretsPath}
}
