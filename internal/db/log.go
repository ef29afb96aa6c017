// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"sync/atomic"

	"github.com/toeirei/dcprovision/internal/logging"
)

var traceStore atomic.Bool

// SetDebug turns store tracing on or off. Every search, write and raw
// statement is logged at debug level while it is on.
func SetDebug(enabled bool) {
	traceStore.Store(enabled)
}

func dbLogf(format string, v ...any) {
	if traceStore.Load() {
		logging.Debugf(format, v...)
	}
}
