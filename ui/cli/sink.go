// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/toeirei/dcprovision/internal/logging"
)

var (
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// consoleSink prints bootstrap progress. With quiet set messages only reach
// the debug log.
type consoleSink struct {
	w     io.Writer
	quiet bool
}

func (s consoleSink) Report(msg string) {
	msg = strings.TrimRight(msg, "\n")
	logging.Debugf("%s", msg)
	if s.quiet {
		return
	}
	fmt.Fprintln(s.w, progressStyle.Render(msg))
}
