// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package setup

import "sort"

// Value is a context entry: either a Static string or a Generator that is
// invoked every time its placeholder is rendered.
type Value interface {
	render() string
}

// Static is a fixed context value.
type Static string

func (s Static) render() string { return string(s) }

// Generator produces a fresh value on every placeholder occurrence, e.g. a
// new GUID or the current time.
type Generator func() string

func (g Generator) render() string { return g() }

// Context maps placeholder names to values.
type Context map[string]Value

// Set stores a static value.
func (c Context) Set(name, value string) {
	c[name] = Static(value)
}

// SetGenerator stores a generator.
func (c Context) SetGenerator(name string, fn func() string) {
	c[name] = Generator(fn)
}

// Get returns the static value of name. Generators and missing names report
// false.
func (c Context) Get(name string) (string, bool) {
	s, ok := c[name].(Static)
	return string(s), ok
}

// String returns the static value of name or "".
func (c Context) String(name string) string {
	s, _ := c.Get(name)
	return s
}

// IsGenerator reports whether name is bound to a generator.
func (c Context) IsGenerator(name string) bool {
	_, ok := c[name].(Generator)
	return ok
}

// Clone returns a shallow copy; generators are shared.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Names returns the bound names in sorted order.
func (c Context) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
