// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package nss

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestResolveFirst_ReturnsFirstRecognized(t *testing.T) {
	lookup := Static{Groups: []string{"staff"}}
	name, err := ResolveFirst(lookup.ByGroupName, "wheel", "root", "staff", "adm")
	require.NoError(t, err)
	require.Equal(t, "staff", name)
}

func TestResolveFirst_Exhausted(t *testing.T) {
	_, err := ResolveFirst(Static{}.ByUserName, "nobody")
	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Equal(t, []string{"nobody"}, ex.Candidates)
	require.Contains(t, err.Error(), "nobody")

	_, err = ResolveFirst(Static{}.ByUserName)
	require.Error(t, err)
}

func TestResolveFirst_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("returns the first accepted candidate, fails iff none accepted", prop.ForAll(
		func(candidateIdx []int, knownIdx []int) bool {
			candidates := pick(candidateIdx)
			known := pick(knownIdx)
			lookup := Static{Groups: known}
			got, err := ResolveFirst(lookup.ByGroupName, candidates...)
			for _, c := range candidates {
				for _, k := range known {
					if c == k {
						return err == nil && got == c
					}
				}
			}
			return err != nil && got == ""
		},
		gen.SliceOf(gen.IntRange(0, len(groupNames)-1)),
		gen.SliceOf(gen.IntRange(0, len(groupNames)-1)),
	))

	properties.TestingRun(t)
}

var groupNames = []string{"wheel", "root", "staff", "adm", "users"}

func pick(idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, groupNames[i])
	}
	return out
}

func TestStatic(t *testing.T) {
	s := Static{Users: []string{"root"}, Groups: []string{"wheel"}}
	id, err := s.ByUserName("root")
	require.NoError(t, err)
	require.Equal(t, "root", id.Name)
	_, err = s.ByUserName("wheel")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.ByGroupName("wheel")
	require.NoError(t, err)
}
