// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package nss looks up local users and groups.
package nss

import (
	"errors"
	"fmt"
	"os/user"
	"strings"
)

// ErrNotFound is returned when a name is unknown to the lookup.
var ErrNotFound = errors.New("no such user or group")

// Identity is a resolved local account or group.
type Identity struct {
	Name string
	ID   string
}

// Lookup resolves local identity names.
type Lookup interface {
	ByUserName(name string) (*Identity, error)
	ByGroupName(name string) (*Identity, error)
}

// LookupFunc is one of the Lookup methods.
type LookupFunc func(name string) (*Identity, error)

// ExhaustedError is returned by ResolveFirst when no candidate resolved.
type ExhaustedError struct {
	Candidates []string
}

func (e *ExhaustedError) Error() string {
	if len(e.Candidates) == 0 {
		return "no candidate names given"
	}
	return fmt.Sprintf("unable to find user/group for %s (tried %s)", e.Candidates[0], strings.Join(e.Candidates, ", "))
}

// ResolveFirst returns the first candidate that fn recognizes.
func ResolveFirst(fn LookupFunc, candidates ...string) (string, error) {
	for _, c := range candidates {
		if id, err := fn(c); err == nil && id != nil {
			return c, nil
		}
	}
	return "", &ExhaustedError{Candidates: append([]string(nil), candidates...)}
}

// System queries the host's user and group databases.
type System struct{}

func (System) ByUserName(name string) (*Identity, error) {
	u, err := user.Lookup(name)
	if err != nil {
		var unknown user.UnknownUserError
		if errors.As(err, &unknown) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Identity{Name: u.Username, ID: u.Uid}, nil
}

func (System) ByGroupName(name string) (*Identity, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		var unknown user.UnknownGroupError
		if errors.As(err, &unknown) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Identity{Name: g.Name, ID: g.Gid}, nil
}

// Static is a fixed in-memory lookup.
type Static struct {
	Users  []string
	Groups []string
}

func (s Static) ByUserName(name string) (*Identity, error) {
	return find(s.Users, name)
}

func (s Static) ByGroupName(name string) (*Identity, error) {
	return find(s.Groups, name)
}

func find(list []string, name string) (*Identity, error) {
	for i, n := range list {
		if n == name {
			return &Identity{Name: n, ID: fmt.Sprint(1000 + i)}, nil
		}
	}
	return nil, ErrNotFound
}
