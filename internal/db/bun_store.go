// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
	"github.com/uptrace/bun"
)

// formatConstraint lists the on-disk formats this build can read.
const formatConstraint = "^1.0.0"

// rootDSEKey is the special record holding the rootDSE attributes.
const rootDSEKey = "@ROOTDSE"

type entryModel struct {
	bun.BaseModel `bun:"table:ds_entries"`

	NDN    string `bun:"ndn,pk"`
	DN     string `bun:"dn"`
	Parent string `bun:"parent"`
	Attrs  string `bun:"attrs"`
}

func (m *entryModel) record() (*record, error) {
	return unmarshalRecord(m.NDN, m.DN, m.Attrs)
}

func modelFor(r *record) (*entryModel, error) {
	attrs, err := r.marshalAttrs()
	if err != nil {
		return nil, err
	}
	return &entryModel{NDN: r.ndn, DN: r.dn, Parent: ParentDN(r.ndn), Attrs: attrs}, nil
}

// BunStore is the SQL backed Store. SQLite files are the default; PostgreSQL
// and MySQL are reached through DSN URLs.
type BunStore struct {
	mu       sync.Mutex
	location string
	dbType   string
	bun      *bun.DB
	tx       *bun.Tx
}

// NewBunStore returns an unconnected SQL store.
func NewBunStore() *BunStore {
	return &BunStore{}
}

// NewBunStoreFromDB wraps an already open database. Migrations are not run.
func NewBunStoreFromDB(sqlDB *sql.DB, dbType, location string) *BunStore {
	return &BunStore{location: location, dbType: dbType, bun: createBunDB(sqlDB, dbType)}
}

// BunDB exposes the underlying Bun DB for callers that need raw access.
func (s *BunStore) BunDB() *bun.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bun
}

func (s *BunStore) Connect(ctx context.Context, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	s.location = location
	bdb, dbType, err := openSQL(location)
	if err != nil {
		return err
	}
	if err := bdb.PingContext(ctx); err != nil {
		_ = bdb.Close()
		return fmt.Errorf("ping %s: %w", location, err)
	}
	s.bun = bdb
	s.dbType = dbType
	return nil
}

func (s *BunStore) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

func (s *BunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *BunStore) closeLocked() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.bun == nil {
		return nil
	}
	err := s.bun.Close()
	s.bun = nil
	return err
}

func (s *BunStore) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// idb returns the open transaction if any, otherwise the DB.
func (s *BunStore) idb() bun.IDB {
	if s.tx != nil {
		return s.tx
	}
	return s.bun
}

func (s *BunStore) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return ErrNotConnected
	}
	if s.tx != nil {
		return ErrTransactionOpen
	}
	tx, err := s.bun.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = &tx
	return nil
}

func (s *BunStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *BunStore) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (s *BunStore) Search(ctx context.Context, base string, scope Scope, filter string, attrs []string) ([]*ldap.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return nil, ErrNotConnected
	}
	f, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}
	nb, err := NormalizeDN(base)
	if err != nil {
		return nil, err
	}
	if nb == "" && scope == ScopeBase {
		return s.rootDSE(ctx, f, attrs)
	}

	var rows []entryModel
	q := s.idb().NewSelect().Model(&rows)
	switch scope {
	case ScopeBase:
		q = q.Where("ndn = ?", nb)
	case ScopeOneLevel:
		q = q.Where("parent = ?", nb)
	case ScopeSubtree:
		if nb != "" {
			q = q.Where("(ndn = ? OR ndn LIKE ? ESCAPE '!')", nb, "%,"+escapeLike(nb))
		}
	default:
		return nil, fmt.Errorf("unknown search scope %d", scope)
	}
	if err := q.Order("ndn").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("search %q: %w", base, err)
	}

	out := make([]*ldap.Entry, 0, len(rows))
	for i := range rows {
		r, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		ok, err := matchFilter(f, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r.entry(attrs))
		}
	}
	dbLogf("db: search base=%q scope=%s filter=%q -> %d", base, scope, filter, len(out))
	return out, nil
}

// rootDSE synthesizes the entry with the empty DN from the @ROOTDSE record.
func (s *BunStore) rootDSE(ctx context.Context, f *ber.Packet, attrs []string) ([]*ldap.Entry, error) {
	r := &record{}
	m, err := s.load(ctx, rootDSEKey)
	switch {
	case err == nil:
		seed, err := m.record()
		if err != nil {
			return nil, err
		}
		r.attrs = seed.attrs
	case !errors.Is(err, ErrNoSuchEntry):
		return nil, err
	}
	if r.index("objectClass") < 0 {
		r.addValues("objectClass", []string{"top", "rootDSE"})
	}
	ok, err := matchFilter(f, r)
	if err != nil || !ok {
		return nil, err
	}
	return []*ldap.Entry{r.entry(attrs)}, nil
}

func (s *BunStore) load(ctx context.Context, ndn string) (*entryModel, error) {
	m := new(entryModel)
	err := s.idb().NewSelect().Model(m).Where("ndn = ?", ndn).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSuchEntry
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *BunStore) Add(ctx context.Context, reqs []*ldap.AddRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return ErrNotConnected
	}
	for _, req := range reqs {
		r, err := recordFromAdd(req)
		if err != nil {
			return err
		}
		m, err := modelFor(r)
		if err != nil {
			return err
		}
		if _, err := s.idb().NewInsert().Model(m).Exec(ctx); err != nil {
			return fmt.Errorf("add %s: %w", req.DN, MapDBError(err))
		}
	}
	return nil
}

func (s *BunStore) Modify(ctx context.Context, reqs []*ldap.ModifyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return ErrNotConnected
	}
	for _, req := range reqs {
		ndn, err := NormalizeDN(req.DN)
		if err != nil {
			return err
		}
		m, err := s.load(ctx, ndn)
		if err != nil {
			return fmt.Errorf("modify %s: %w", req.DN, err)
		}
		r, err := m.record()
		if err != nil {
			return err
		}
		if err := r.apply(req.Changes); err != nil {
			return fmt.Errorf("modify %s: %w", req.DN, err)
		}
		if m.Attrs, err = r.marshalAttrs(); err != nil {
			return err
		}
		if _, err := s.idb().NewUpdate().Model(m).Column("attrs").WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("modify %s: %w", req.DN, MapDBError(err))
		}
	}
	return nil
}

func (s *BunStore) Delete(ctx context.Context, dn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return ErrNotConnected
	}
	ndn, err := NormalizeDN(dn)
	if err != nil {
		return err
	}
	if ndn == "" {
		return fmt.Errorf("delete: %w: the rootDSE cannot be deleted", ErrUnsupported)
	}
	if !IsSpecialDN(ndn) {
		children, err := s.idb().NewSelect().Model((*entryModel)(nil)).Where("parent = ?", ndn).Count(ctx)
		if err != nil {
			return fmt.Errorf("delete %s: %w", dn, err)
		}
		if children > 0 {
			return fmt.Errorf("delete %s: %w", dn, ErrNotAllowedOnNonLeaf)
		}
	}
	res, err := s.idb().NewDelete().Model((*entryModel)(nil)).Where("ndn = ?", ndn).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", dn, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", dn, ErrNoSuchEntry)
	}
	return nil
}

func (s *BunStore) Verify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bun == nil {
		return ErrNotConnected
	}
	if s.dbType == "sqlite" {
		var res string
		if err := QueryRawInto(ctx, s.bun, &res, "PRAGMA integrity_check"); err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}
		if res != "ok" {
			return fmt.Errorf("sqlite integrity_check failed: %s", res)
		}
	}
	var version string
	if err := QueryRawInto(ctx, s.bun, &version, "SELECT meta_value FROM ds_meta WHERE meta_key = ?", "format_version"); err != nil {
		return fmt.Errorf("%w: read format version: %v", ErrIncompatibleFormat, err)
	}
	return checkFormat(version)
}

func checkFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleFormat, version, err)
	}
	c, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: version %s does not satisfy %s", ErrIncompatibleFormat, v, formatConstraint)
	}
	return nil
}

// Destroy removes the store. SQLite files are unlinked together with their
// journal side files; remote SQL stores have their tables dropped.
func (s *BunStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if backendFor(s.location) == "sqlite" {
		_ = s.closeLocked()
		if s.location == "" {
			return ErrNotConnected
		}
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			if err := os.Remove(s.location + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", s.location+suffix, err)
			}
		}
		return nil
	}
	if s.location == "" {
		return ErrNotConnected
	}
	_ = s.closeLocked()
	// A failed Connect leaves no handle; the tables may be what broke it.
	bdb, err := openBareSQL(s.location)
	if err != nil {
		return err
	}
	defer func() { _ = bdb.Close() }()
	for _, table := range []string{"ds_entries", "ds_meta", "schema_migrations"} {
		if _, err := ExecRaw(ctx, bdb, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// escapeLike escapes LIKE metacharacters using '!' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
