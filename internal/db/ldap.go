// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

// LDAPStore talks to a remote directory server. LDAP has no multi-operation
// transactions, so Begin and Commit only track state and Cancel reports that
// nothing was rolled back.
type LDAPStore struct {
	mu           sync.Mutex
	location     string
	conn         *ldap.Conn
	bindDN       string
	bindPassword string
	inTx         bool
}

// NewLDAPStore returns an unconnected LDAP client store.
func NewLDAPStore() *LDAPStore {
	return &LDAPStore{}
}

// SetCredentials configures a simple bind performed by Connect.
func (s *LDAPStore) SetCredentials(bindDN, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindDN = bindDN
	s.bindPassword = password
}

func (s *LDAPStore) Connect(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.location = location
	conn, err := ldap.DialURL(location)
	if err != nil {
		return fmt.Errorf("dial %s: %w", location, err)
	}
	if s.bindDN != "" {
		if err := conn.Bind(s.bindDN, s.bindPassword); err != nil {
			conn.Close()
			return fmt.Errorf("bind as %s: %w", s.bindDN, err)
		}
	}
	s.conn = conn
	return nil
}

func (s *LDAPStore) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *LDAPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *LDAPStore) closeLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.inTx = false
}

func (s *LDAPStore) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx
}

func (s *LDAPStore) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if s.inTx {
		return ErrTransactionOpen
	}
	s.inTx = true
	return nil
}

func (s *LDAPStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTx {
		return ErrNoTransaction
	}
	s.inTx = false
	return nil
}

func (s *LDAPStore) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTx {
		return ErrNoTransaction
	}
	s.inTx = false
	return fmt.Errorf("cancel: %w: changes already sent to %s remain", ErrUnsupported, s.location)
}

func (s *LDAPStore) Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]*ldap.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	if base == "" && scope == ScopeSubtree {
		contexts, err := s.searchLocked("", ScopeBase, "", []string{"namingContexts"})
		if err != nil {
			return nil, err
		}
		var out []*ldap.Entry
		for _, root := range contexts {
			for _, nc := range root.GetAttributeValues("namingContexts") {
				res, err := s.searchLocked(nc, ScopeSubtree, filter, attrs)
				if err != nil {
					return nil, err
				}
				out = append(out, res...)
			}
		}
		return out, nil
	}
	return s.searchLocked(base, scope, filter, attrs)
}

func (s *LDAPStore) searchLocked(base string, scope Scope, filter string, attrs []string) ([]*ldap.Entry, error) {
	if IsSpecialDN(base) {
		return nil, nil
	}
	req := ldap.NewSearchRequest(base, int(scope), ldap.NeverDerefAliases, 0, 0, false, normalizeFilter(filter), attrs, nil)
	res, err := s.conn.Search(req)
	if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", base, err)
	}
	return res.Entries, nil
}

func (s *LDAPStore) Add(ctx context.Context, reqs []*ldap.AddRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	for _, req := range reqs {
		if IsSpecialDN(req.DN) {
			dbLogf("db: skipping special record %s on LDAP backend", req.DN)
			continue
		}
		if err := s.conn.Add(req); err != nil {
			return fmt.Errorf("add %s: %w", req.DN, mapLDAPError(err))
		}
	}
	return nil
}

func (s *LDAPStore) Modify(ctx context.Context, reqs []*ldap.ModifyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	for _, req := range reqs {
		if IsSpecialDN(req.DN) {
			continue
		}
		if err := s.conn.Modify(req); err != nil {
			return fmt.Errorf("modify %s: %w", req.DN, mapLDAPError(err))
		}
	}
	return nil
}

func (s *LDAPStore) Delete(ctx context.Context, dn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	if IsSpecialDN(dn) {
		return fmt.Errorf("delete %s: %w", dn, ErrNoSuchEntry)
	}
	if err := s.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		return fmt.Errorf("delete %s: %w", dn, mapLDAPError(err))
	}
	return nil
}

// Verify reads the rootDSE.
func (s *LDAPStore) Verify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	_, err := s.searchLocked("", ScopeBase, "", []string{"namingContexts"})
	return err
}

func (s *LDAPStore) Destroy(ctx context.Context) error {
	return fmt.Errorf("destroy %s: %w", s.Location(), ErrUnsupported)
}

// mapLDAPError translates LDAP result codes into the store sentinels.
func mapLDAPError(err error) error {
	var le *ldap.Error
	if !errors.As(err, &le) {
		return err
	}
	switch le.ResultCode {
	case ldap.LDAPResultEntryAlreadyExists:
		return fmt.Errorf("%w: %v", ErrEntryAlreadyExists, err)
	case ldap.LDAPResultNoSuchObject:
		return fmt.Errorf("%w: %v", ErrNoSuchEntry, err)
	case ldap.LDAPResultNotAllowedOnNonLeaf:
		return fmt.Errorf("%w: %v", ErrNotAllowedOnNonLeaf, err)
	default:
		return err
	}
}
