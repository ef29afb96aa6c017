// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"sort"

	"github.com/go-ldap/ldap/v3"

	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/logging"
)

// MaxEraseRounds bounds the per-partition erase loop.
const MaxEraseRounds = 10

var specialRecords = []string{"@INDEXLIST", "@ATTRIBUTES", "@SUBCLASSES", "@MODULES", "@PARTITION", "@KLUDGEACL"}

const (
	eraseAllFilter       = "(&(|(objectclass=*)(dn=*))(!(dn=@BASEINFO)))"
	erasePartitionFilter = "(|(objectclass=*)(dn=*))"
)

// EraseAll removes every record from the store, special records included.
// If anything survives, or the store cannot be searched, the storage is
// deleted and recreated and a new transaction is started.
func (s *Session) EraseAll(ctx context.Context) error {
	for _, dn := range specialRecords {
		if err := s.store.Delete(ctx, dn); err != nil {
			logging.Debugf("erase %s in %s: %v", dn, s.location, err)
		}
	}
	res, err := s.store.Search(ctx, "", db.ScopeSubtree, eraseAllFilter, []string{"dn"})
	if err != nil {
		return s.recreate(ctx)
	}
	s.deleteAll(ctx, res)
	res, err = s.store.Search(ctx, "", db.ScopeSubtree, eraseAllFilter, []string{"dn"})
	if err != nil || len(res) != 0 {
		return s.recreate(ctx)
	}
	return nil
}

func (s *Session) recreate(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}
	if err := s.store.Begin(ctx); err != nil {
		return Fatalf(s.phase, err, "begin transaction on %s", s.location)
	}
	return nil
}

// EraseResult summarizes one partition erase.
type EraseResult struct {
	Base      string
	Rounds    int
	Remaining int
	Converged bool
}

// ErasePartitions empties every naming context listed in the root DSE. The
// containers themselves are removed too; the base DN phase puts them back.
// Search and delete failures are reported and do not stop the loop.
func (s *Session) ErasePartitions(ctx context.Context) ([]EraseResult, error) {
	res, err := s.store.Search(ctx, "", db.ScopeBase, "(objectClass=*)", []string{"namingContexts"})
	if err != nil {
		return nil, Fatalf(s.phase, err, "read root DSE of %s", s.location)
	}
	if len(res) != 1 {
		return nil, Fatalf(s.phase, nil, "root DSE of %s returned %d records", s.location, len(res))
	}
	var out []EraseResult
	for _, base := range res[0].GetAttributeValues("namingContexts") {
		out = append(out, s.erasePartition(ctx, base))
	}
	return out, nil
}

// erasePartition deletes everything under base in bounded rounds. A round
// counts the records found, deletes them, and re-checks. The loop stops once
// two consecutive rounds found the same number of records.
func (s *Session) erasePartition(ctx context.Context, base string) EraseResult {
	r := EraseResult{Base: base, Remaining: -1}
	previous, current := 1, 0
	for k := 0; k < MaxEraseRounds && previous != current; k++ {
		r.Rounds++
		res, err := s.store.Search(ctx, base, db.ScopeSubtree, erasePartitionFilter, []string{"dn"})
		if err != nil {
			s.ri.report("bootstrap.erase_search_failed", base, err)
			continue
		}
		previous = current
		current = len(res)
		s.deleteAll(ctx, res)
		left, err := s.store.Search(ctx, base, db.ScopeSubtree, erasePartitionFilter, []string{"dn"})
		if err != nil {
			s.ri.report("bootstrap.erase_search_failed", base, err)
			continue
		}
		r.Remaining = len(left)
		if len(left) != 0 {
			s.ri.report("bootstrap.erase_remaining", base, len(left))
		}
	}
	r.Converged = previous == current
	if !r.Converged {
		s.ri.report("bootstrap.erase_unsettled", base, r.Rounds)
	}
	return r
}

// deleteAll removes entries deepest first. Individual failures are logged;
// the caller re-checks what is left.
func (s *Session) deleteAll(ctx context.Context, entries []*ldap.Entry) int {
	sorted := make([]*ldap.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return depth(sorted[i].DN) > depth(sorted[j].DN)
	})
	failed := 0
	for _, e := range sorted {
		if err := s.store.Delete(ctx, e.DN); err != nil {
			failed++
			logging.Debugf("delete %s in %s: %v", e.DN, s.location, err)
		}
	}
	return failed
}

func depth(dn string) int {
	n := 0
	for dn != "" && !db.IsSpecialDN(dn) {
		n++
		dn = db.ParentDN(dn)
	}
	return n
}
