// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Scope selects which entries below a search base are considered.
type Scope int

// Search scopes. The values match the LDAP wire encoding.
const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "one"
	case ScopeSubtree:
		return "sub"
	default:
		return "unknown"
	}
}

// Store is a hierarchical record store holding directory entries.
//
// Searching with an empty base and ScopeBase returns the rootDSE, a synthetic
// entry describing the naming contexts. Searching with an empty base and
// ScopeSubtree returns every record including special records.
//
// At most one transaction may be open at a time. Writes outside a
// transaction are applied immediately.
type Store interface {
	// Connect opens the store at the given location, creating it if needed.
	Connect(ctx context.Context, location string) error
	// Close releases the connection and rolls back any open transaction.
	Close() error
	// Location returns the location passed to the last Connect.
	Location() string

	Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]*ldap.Entry, error)
	Add(ctx context.Context, reqs []*ldap.AddRequest) error
	Modify(ctx context.Context, reqs []*ldap.ModifyRequest) error
	Delete(ctx context.Context, dn string) error

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
	InTransaction() bool

	// Verify checks that the store is readable and in a supported format.
	Verify(ctx context.Context) error
	// Destroy removes the underlying storage. The store is disconnected afterwards.
	Destroy(ctx context.Context) error
}

// Opener returns an unconnected store suitable for the given location.
type Opener func(location string) Store

// Open returns an unconnected Store for location. ldap:// and ldaps:// URLs
// select the LDAP client backend. postgres:// and mysql:// URLs select the SQL
// store on those engines. Anything else is treated as a SQLite file path.
func Open(location string) Store {
	switch backendFor(location) {
	case "ldap":
		return NewLDAPStore()
	default:
		return NewBunStore()
	}
}

// IsRemote reports whether location names a network backend rather than a
// local file.
func IsRemote(location string) bool {
	return backendFor(location) != "sqlite"
}

func backendFor(location string) string {
	l := strings.ToLower(strings.TrimSpace(location))
	switch {
	case strings.HasPrefix(l, "ldap://"), strings.HasPrefix(l, "ldaps://"), strings.HasPrefix(l, "ldapi://"):
		return "ldap"
	case strings.HasPrefix(l, "postgres://"), strings.HasPrefix(l, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(l, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}
