// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db provides the record store used by the provisioning engine.
//
// A store holds directory entries keyed by their normalized distinguished
// name. Entries whose DN starts with '@' are special records (index lists,
// partition tables, the rootDSE seed) and live outside the naming tree.
//
// Two backends exist: a bun-backed SQL store (SQLite by default, PostgreSQL
// or MySQL when the location is a DSN URL) and a thin client for a remote
// LDAP server. Open picks one based on the location string.
package db // import "github.com/toeirei/dcprovision/internal/db"
