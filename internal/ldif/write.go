// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package ldif

import (
	"encoding/base64"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-ldap/ldap/v3"
)


// Write streams entries as LDIF content records to w.
func Write(w io.Writer, entries []*ldap.Entry) error {
	for _, e := range entries {
		var b strings.Builder
		writeLine(&b, "dn", e.DN)
		for _, a := range e.Attributes {
			for _, v := range a.Values {
				writeLine(&b, a.Name, v)
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(b *strings.Builder, name, value string) {
	b.WriteString(name)
	if safe(value) {
		b.WriteString(": ")
		b.WriteString(value)
	} else {
		b.WriteString(":: ")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(value)))
	}
	b.WriteByte('\n')
}

// safe reports whether value is a SAFE-STRING per RFC 2849 (UTF-8 is allowed
// through, as every consumer of these files is UTF-8 aware).
func safe(value string) bool {
	if value == "" {
		return true
	}
	if !utf8.ValidString(value) {
		return false
	}
	switch value[0] {
	case ' ', ':', '<':
		return false
	}
	if strings.HasSuffix(value, " ") {
		return false
	}
	for _, r := range value {
		if r == '\n' || r == '\r' || r == 0 {
			return false
		}
	}
	return true
}
