// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// IsSpecialDN reports whether dn names a special record such as @INDEXLIST.
func IsSpecialDN(dn string) bool {
	return strings.HasPrefix(strings.TrimSpace(dn), "@")
}

// NormalizeDN returns the canonical key for dn: attribute types and values
// lowercased, multi-valued RDN components sorted and values re-escaped.
// Special DNs are uppercased and otherwise left alone.
func NormalizeDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}
	if IsSpecialDN(dn) {
		return strings.ToUpper(dn), nil
	}
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDN, dn, err)
	}
	parts := make([]string, 0, len(parsed.RDNs))
	for _, rdn := range parsed.RDNs {
		avas := make([]string, 0, len(rdn.Attributes))
		for _, a := range rdn.Attributes {
			avas = append(avas, strings.ToLower(a.Type)+"="+escapeDNValue(strings.ToLower(a.Value)))
		}
		sort.Strings(avas)
		parts = append(parts, strings.Join(avas, "+"))
	}
	return strings.Join(parts, ","), nil
}

// ParentDN returns the parent of a normalized DN, or "" for top level and
// special entries.
func ParentDN(ndn string) string {
	if ndn == "" || IsSpecialDN(ndn) {
		return ""
	}
	for i := 0; i < len(ndn); i++ {
		switch ndn[i] {
		case '\\':
			i++
		case ',':
			return ndn[i+1:]
		}
	}
	return ""
}

// IsDescendant reports whether ndn equals base or sits below it. Both
// arguments must be normalized.
func IsDescendant(ndn, base string) bool {
	if base == "" {
		return true
	}
	if ndn == base {
		return true
	}
	for p := ParentDN(ndn); p != ""; p = ParentDN(p) {
		if p == base {
			return true
		}
	}
	return false
}

func escapeDNValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c == '\\' || c == ',' || c == '+' || c == '"' || c == '<' || c == '>' || c == ';' || c == '=':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == 0:
			b.WriteString(`\00`)
		case i == 0 && (c == ' ' || c == '#'):
			b.WriteByte('\\')
			b.WriteByte(c)
		case i == len(v)-1 && c == ' ':
			b.WriteString(`\ `)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
