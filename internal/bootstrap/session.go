// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/toeirei/dcprovision/internal/db"
	"github.com/toeirei/dcprovision/internal/ldif"
	"github.com/toeirei/dcprovision/internal/logging"
)

// Session is an open handle to one store for the duration of a phase group.
type Session struct {
	ri       *RunInfo
	store    db.Store
	location string
	phase    Phase
}

// Connect opens the store at location. A store that cannot be opened or
// fails its sanity check is deleted and recreated; if that also fails the
// error is fatal.
func Connect(ctx context.Context, ri *RunInfo, phase Phase, location string) (*Session, error) {
	s := &Session{ri: ri, store: ri.Open(location), location: location, phase: phase}
	err := s.store.Connect(ctx, location)
	if err == nil {
		err = s.store.Verify(ctx)
	}
	if err != nil {
		logging.Debugf("open %s: %v", location, err)
		if rerr := s.Recover(ctx); rerr != nil {
			return nil, rerr
		}
	}
	return s, nil
}

// OpenForBootstrap connects, starts a transaction and, when erase is set,
// removes every record from the store.
func OpenForBootstrap(ctx context.Context, ri *RunInfo, phase Phase, location string, erase bool) (*Session, error) {
	s, err := Connect(ctx, ri, phase, location)
	if err != nil {
		return nil, err
	}
	if err := s.store.Begin(ctx); err != nil {
		_ = s.Close()
		return nil, Fatalf(phase, err, "begin transaction on %s", location)
	}
	if erase {
		if err := s.EraseAll(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Recover deletes the store's storage and reconnects to a fresh, empty one.
func (s *Session) Recover(ctx context.Context) error {
	s.ri.report("bootstrap.recreate", s.location)
	if err := s.store.Destroy(ctx); err != nil {
		return Fatalf(s.phase, err, "delete %s", s.location)
	}
	if err := s.store.Connect(ctx, s.location); err != nil {
		return Fatalf(s.phase, err, "reconnect %s", s.location)
	}
	if err := s.store.Verify(ctx); err != nil {
		return Fatalf(s.phase, err, "%s unusable after recreation", s.location)
	}
	return nil
}

// Store exposes the underlying store.
func (s *Session) Store() db.Store { return s.store }

// SetPhase changes the phase recorded on failures raised by s.
func (s *Session) SetPhase(p Phase) { s.phase = p }

// Apply writes recs in order and stops at the first failure. A failure is
// reported to the sink and returned as tolerated when tolerate is set.
func (s *Session) Apply(ctx context.Context, recs []*ldif.Record, tolerate bool) error {
	for _, r := range recs {
		var err error
		switch {
		case r.Add != nil:
			err = s.store.Add(ctx, []*ldap.AddRequest{r.Add})
		case r.Modify != nil:
			err = s.store.Modify(ctx, []*ldap.ModifyRequest{r.Modify})
		case r.Delete != nil:
			err = s.store.Delete(ctx, r.Delete.DN)
		}
		if err == nil {
			continue
		}
		s.ri.report("bootstrap.load_failed", r.DN(), err)
		if tolerate {
			return Toleratedf(s.phase, err, "load %s", r.DN())
		}
		return Fatalf(s.phase, err, "load %s into %s", r.DN(), s.location)
	}
	return nil
}

// ApplyTemplate renders the named template with the run context and applies
// it. Rendering problems are always fatal.
func (s *Session) ApplyTemplate(ctx context.Context, name string, tolerate bool) error {
	recs, err := s.ri.Templates.RenderLDIF(name, s.ri.Context)
	if err != nil {
		return Fatalf(s.phase, err, "render %s", name)
	}
	return s.Apply(ctx, recs, tolerate)
}

// Commit makes the open transaction durable. Failure is fatal.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.store.Commit(ctx); err != nil {
		s.ri.report("bootstrap.commit_failed", s.location, err)
		return Fatalf(s.phase, err, "commit %s", s.location)
	}
	return nil
}

// Cancel discards the open transaction. Stores that cannot roll back report
// db.ErrUnsupported, which is passed through.
func (s *Session) Cancel(ctx context.Context) error {
	err := s.store.Cancel(ctx)
	if err != nil && !errors.Is(err, db.ErrNoTransaction) {
		return err
	}
	return nil
}

// Close releases the store. An open transaction is discarded.
func (s *Session) Close() error {
	return s.store.Close()
}

// release closes s, first discarding the open transaction unless the work
// in it was committed.
func (s *Session) release(ctx context.Context, committed bool) {
	if !committed {
		if err := s.Cancel(ctx); err != nil {
			logging.Debugf("cancel %s: %v", s.location, err)
		}
	}
	_ = s.Close()
}

// searchOne returns attr of the single entry matching filter under base.
// The pseudo attribute "dn" yields the entry's DN.
func (s *Session) searchOne(ctx context.Context, base string, scope db.Scope, filter, attr string) (string, error) {
	res, err := s.store.Search(ctx, base, scope, filter, []string{attr})
	if err != nil {
		return "", err
	}
	if len(res) != 1 {
		return "", &countError{filter: filter, base: base, got: len(res)}
	}
	if attr == "dn" {
		return res[0].DN, nil
	}
	v := res[0].GetAttributeValue(attr)
	if v == "" {
		return "", &countError{filter: filter, base: base, attr: attr}
	}
	return v, nil
}

type countError struct {
	filter string
	base   string
	attr   string
	got    int
}

func (e *countError) Error() string {
	if e.attr != "" {
		return fmt.Sprintf("no %s on record matching %s under %s", e.attr, e.filter, quoteBase(e.base))
	}
	return fmt.Sprintf("expected one record matching %s under %s, found %d", e.filter, quoteBase(e.base), e.got)
}

func quoteBase(b string) string {
	if b == "" {
		return "the root"
	}
	return b
}
