// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// rawRunner is satisfied by *bun.DB and bun.Tx.
type rawRunner interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

// ExecRaw runs a statement that returns no rows, such as the table drops of
// Destroy or a metadata update.
func ExecRaw(ctx context.Context, r rawRunner, query string, args ...interface{}) (sql.Result, error) {
	dbLogf("db: exec %s", query)
	return r.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a query and scans its rows into dest.
func QueryRawInto(ctx context.Context, r rawRunner, dest interface{}, query string, args ...interface{}) error {
	dbLogf("db: query %s", query)
	return r.NewRaw(query, args...).Scan(ctx, dest)
}
