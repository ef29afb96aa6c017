// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"strings"
)

var (
	// ErrEntryAlreadyExists is returned when adding an entry whose DN is taken.
	ErrEntryAlreadyExists = errors.New("entry already exists")
	// ErrNoSuchEntry is returned when modifying or deleting a missing entry.
	ErrNoSuchEntry = errors.New("no such entry")
	// ErrNotAllowedOnNonLeaf is returned when deleting an entry that still has children.
	ErrNotAllowedOnNonLeaf = errors.New("operation not allowed on non-leaf entry")
	// ErrTransactionOpen is returned by Begin while another transaction is active.
	ErrTransactionOpen = errors.New("a transaction is already open")
	// ErrNoTransaction is returned by Commit and Cancel without an open transaction.
	ErrNoTransaction = errors.New("no transaction is open")
	// ErrNotConnected is returned when the store has no live connection.
	ErrNotConnected = errors.New("store is not connected")
	// ErrUnsupported is returned by backends that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by this backend")
	// ErrInvalidDN wraps DN syntax errors.
	ErrInvalidDN = errors.New("invalid DN")
	// ErrInvalidFilter wraps search filter syntax errors.
	ErrInvalidFilter = errors.New("invalid search filter")
	// ErrIncompatibleFormat is returned by Verify when the stored format is unknown.
	ErrIncompatibleFormat = errors.New("incompatible store format")
)

// MapDBError inspects low-level driver errors and maps unique constraint
// violations to ErrEntryAlreadyExists. The mapping is string based so this
// file stays free of driver imports.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	// MySQL duplicate entry, Postgres unique violation (23505), SQLite unique constraint
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return ErrEntryAlreadyExists
	}
	return err
}
