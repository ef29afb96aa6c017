// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package ldif reads and writes the LDAP Data Interchange Format used by the
// record templates. Parsed records are expressed as go-ldap request types so
// the same values can be handed to either the local bun-backed store or a
// remote LDAP server without conversion.
//
// Supported input:
//   - content records (no changetype) and "changetype: add", both returned as
//     Record.Add
//   - "changetype: modify" with add/delete/replace/increment groups separated
//     by "-" lines
//   - "changetype: delete"
//   - comments, line folding and base64 ("::") values
//
// URL values (":<") and controls are rejected.
package ldif
