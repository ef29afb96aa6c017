// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"github.com/spf13/afero"

	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/i18n"
	"github.com/toeirei/dcprovision/internal/keytab"
	"github.com/toeirei/dcprovision/internal/logging"
	"github.com/toeirei/dcprovision/internal/setup"
	"github.com/toeirei/dcprovision/internal/state"
)

// MessageSink receives human-readable progress and failure messages.
type MessageSink interface {
	Report(msg string)
}

// SinkFunc adapts a function to MessageSink.
type SinkFunc func(msg string)

func (f SinkFunc) Report(msg string) { f(msg) }

// Params is the configuration view a run reads. *config.Params satisfies it.
type Params interface {
	Get(key string) string
	Reload() error
}

// SecretSource hands out secrets collected before the run. Each secret can
// be taken once.
type SecretSource interface {
	Take(name string) (string, bool)
}

// RunInfo carries everything one run needs. Two RunInfos may be used
// concurrently on disjoint paths as long as they do not share a
// SecretSource.
type RunInfo struct {
	Context   setup.Context
	Sink      MessageSink
	Params    Params
	Paths     PathSet
	Open      db.Opener
	Keytab    keytab.Updater
	Clock     Clock
	Templates *setup.Engine
	// Files is where config, zone and LDIF artifacts are written.
	Files afero.Fs
	Rand  *Random
	// Secrets defaults to the process-wide state.Secrets mailbox.
	Secrets SecretSource
}

// NewRunInfo fills in defaults for every collaborator left nil.
func NewRunInfo(ctx setup.Context, p Params, sink MessageSink) *RunInfo {
	ri := &RunInfo{Context: ctx, Params: p, Sink: sink}
	ri.defaults()
	return ri
}

func (ri *RunInfo) defaults() {
	if ri.Sink == nil {
		ri.Sink = SinkFunc(func(msg string) { logging.Infof("%s", msg) })
	}
	if ri.Open == nil {
		ri.Open = db.Open
	}
	if ri.Keytab == nil {
		ri.Keytab = keytab.Noop{}
	}
	if ri.Clock == nil {
		ri.Clock = SystemClock{}
	}
	if ri.Templates == nil {
		ri.Templates = &setup.Engine{FS: setup.DefaultTemplates()}
	}
	if ri.Files == nil {
		ri.Files = afero.NewOsFs()
	}
	if ri.Rand == nil {
		ri.Rand = NewRandom(nil)
	}
	if ri.Context == nil {
		ri.Context = setup.Context{}
	}
	if ri.Secrets == nil {
		ri.Secrets = state.Secrets
	}
}

// contextSecrets maps mailbox names onto the context keys they fill.
var contextSecrets = []struct{ name, key string }{
	{state.AdminPass, "ADMINPASS"},
	{state.KrbtgtPass, "KRBTGTPASS"},
	{state.MachinePass, "MACHINEPASS"},
}

// takeSecrets moves prompted passwords from the mailbox into the context.
// They override the generated defaults.
func (ri *RunInfo) takeSecrets() {
	for _, s := range contextSecrets {
		if v, ok := ri.Secrets.Take(s.name); ok {
			ri.Context.Set(s.key, v)
		}
	}
}

func (ri *RunInfo) report(id string, args ...any) {
	ri.Sink.Report(i18n.T(id, args...))
}
