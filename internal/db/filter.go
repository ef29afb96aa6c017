// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"fmt"
	"strconv"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// compileFilter parses an LDAP filter. Unparenthesized filters such as
// "objectClass=*" are accepted. An empty filter compiles to nil, which
// matches every record including special ones without an objectClass.
func compileFilter(filter string) (*ber.Packet, error) {
	f := strings.TrimSpace(filter)
	if f == "" {
		return nil, nil
	}
	if !strings.HasPrefix(f, "(") {
		f = "(" + f + ")"
	}
	p, err := ldap.CompileFilter(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFilter, filter, err)
	}
	return p, nil
}

// normalizeFilter returns the parenthesized form of filter for servers that
// insist on it.
func normalizeFilter(filter string) string {
	f := strings.TrimSpace(filter)
	if f == "" {
		return "(objectClass=*)"
	}
	if !strings.HasPrefix(f, "(") {
		return "(" + f + ")"
	}
	return f
}

// matchFilter evaluates a compiled filter against r. Matching is case
// insensitive. Ordering comparisons are numeric when both sides are integers.
func matchFilter(p *ber.Packet, r *record) (bool, error) {
	if p == nil {
		return true, nil
	}
	switch p.Tag {
	case ldap.FilterAnd:
		for _, c := range p.Children {
			ok, err := matchFilter(c, r)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case ldap.FilterOr:
		for _, c := range p.Children {
			ok, err := matchFilter(c, r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterNot:
		if len(p.Children) != 1 {
			return false, fmt.Errorf("%w: malformed NOT", ErrInvalidFilter)
		}
		ok, err := matchFilter(p.Children[0], r)
		return !ok && err == nil, err
	case ldap.FilterPresent:
		attr := packetString(p)
		if isDNAttr(attr) {
			return true, nil
		}
		return len(r.values(attr)) > 0, nil
	case ldap.FilterEqualityMatch, ldap.FilterApproxMatch:
		attr, want, err := assertion(p)
		if err != nil {
			return false, err
		}
		for _, v := range r.values(attr) {
			if equalValue(attr, v, want) {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterGreaterOrEqual, ldap.FilterLessOrEqual:
		attr, want, err := assertion(p)
		if err != nil {
			return false, err
		}
		for _, v := range r.values(attr) {
			c := compareValues(v, want)
			if (p.Tag == ldap.FilterGreaterOrEqual && c >= 0) || (p.Tag == ldap.FilterLessOrEqual && c <= 0) {
				return true, nil
			}
		}
		return false, nil
	case ldap.FilterSubstrings:
		if len(p.Children) != 2 {
			return false, fmt.Errorf("%w: malformed substring filter", ErrInvalidFilter)
		}
		attr := packetString(p.Children[0])
		for _, v := range r.values(attr) {
			if matchSubstrings(strings.ToLower(v), p.Children[1].Children) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: unsupported component %s", ErrInvalidFilter, ldap.FilterMap[uint64(p.Tag)])
	}
}

func assertion(p *ber.Packet) (string, string, error) {
	if len(p.Children) != 2 {
		return "", "", fmt.Errorf("%w: malformed %s", ErrInvalidFilter, ldap.FilterMap[uint64(p.Tag)])
	}
	return packetString(p.Children[0]), packetString(p.Children[1]), nil
}

func packetString(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	if p.Data != nil {
		return p.Data.String()
	}
	return ""
}

func equalValue(attr, have, want string) bool {
	if isDNAttr(attr) {
		a, errA := NormalizeDN(have)
		b, errB := NormalizeDN(want)
		if errA == nil && errB == nil {
			return a == b
		}
	}
	return strings.EqualFold(have, want)
}

func compareValues(a, b string) int {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func matchSubstrings(v string, parts []*ber.Packet) bool {
	pos := 0
	for i, part := range parts {
		s := strings.ToLower(packetString(part))
		switch part.Tag {
		case 0: // initial
			if i != 0 || !strings.HasPrefix(v, s) {
				return false
			}
			pos = len(s)
		case 1: // any
			idx := strings.Index(v[pos:], s)
			if idx < 0 {
				return false
			}
			pos += idx + len(s)
		case 2: // final
			if len(v)-len(s) < pos || !strings.HasSuffix(v, s) {
				return false
			}
			pos = len(v)
		}
	}
	return true
}
