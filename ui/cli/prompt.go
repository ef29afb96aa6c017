// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/state"
)

// readSecret returns value unless it is "-". Then the secret is read from
// the terminal, or from one line of stdin when that is not a terminal, and
// left in the state mailbox under name for the bootstrap run to take; the
// returned string is empty.
func readSecret(cmd *cobra.Command, name, label, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), i18n.T("cli.password_prompt", label))

	var raw []byte
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		raw = b
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}
		raw = []byte(strings.TrimRight(line, "\r\n"))
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty password for %s", label)
	}

	state.Secrets.Set(name, raw)
	for i := range raw {
		raw[i] = 0
	}
	return "", nil
}
