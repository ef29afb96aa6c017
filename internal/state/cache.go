// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package state provides an in-memory mailbox for secrets entered at the
// terminal (administrator, machine and key-distribution-center passwords)
// that must travel from CLI prompts into a bootstrap run without being
// written to flags, the environment or the configuration file.
package state

import "sync"

// Well-known secret names.
const (
	AdminPass   = "adminpass"
	KrbtgtPass  = "krbtgtpass"
	MachinePass = "machinepass"
	UserPass    = "userpass"
)

// Secrets is the process-wide secret mailbox.
var Secrets = &secretMailbox{}

type secretMailbox struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// Set stores a copy of value under name, replacing and wiping any previous value.
func (m *secretMailbox) Set(name string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	wipe(m.values[name])
	if value == nil {
		delete(m.values, name)
		return
	}
	// Store a copy so the caller's original slice isn't held by the mailbox.
	cp := make([]byte, len(value))
	copy(cp, value)
	m.values[name] = cp
}

// Get returns a copy of the secret stored under name, or nil. The caller is
// responsible for wiping the returned slice.
func (m *secretMailbox) Get(name string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	if !ok {
		return nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp
}

// Take returns the secret as a string and wipes it from the mailbox.
func (m *secretMailbox) Take(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return "", false
	}
	s := string(v)
	wipe(v)
	delete(m.values, name)
	return s, true
}

// Clear wipes every stored secret.
func (m *secretMailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.values {
		wipe(v)
		delete(m.values, k)
	}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
