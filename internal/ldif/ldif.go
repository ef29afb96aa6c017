// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package ldif

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Record is one parsed LDIF record. Exactly one field is set.
type Record struct {
	Add    *ldap.AddRequest
	Modify *ldap.ModifyRequest
	Delete *ldap.DelRequest
}

// DN returns the distinguished name the record targets.
func (r *Record) DN() string {
	switch {
	case r.Add != nil:
		return r.Add.DN
	case r.Modify != nil:
		return r.Modify.DN
	case r.Delete != nil:
		return r.Delete.DN
	}
	return ""
}

// ParseError reports the record and line an LDIF problem was found on.
type ParseError struct {
	Line int
	DN   string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("ldif: line %d (dn: %s): %s", e.Line, e.DN, e.Msg)
	}
	return fmt.Sprintf("ldif: line %d: %s", e.Line, e.Msg)
}

type line struct {
	no   int
	text string
}

// Parse splits text into records.
func Parse(text string) ([]*Record, error) {
	var (
		out   []*Record
		block []line
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		rec, err := parseRecord(block)
		block = block[:0]
		if err != nil {
			return err
		}
		if rec != nil {
			out = append(out, rec)
		}
		return nil
	}

	for _, l := range unfold(text) {
		if strings.TrimSpace(l.text) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(l.text, "#") {
			continue
		}
		block = append(block, l)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// unfold joins continuation lines (leading single space) onto their
// predecessor and strips carriage returns.
func unfold(text string) []line {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]line, 0, len(raw))
	for i, r := range raw {
		if strings.HasPrefix(r, " ") && len(out) > 0 && out[len(out)-1].text != "" {
			out[len(out)-1].text += r[1:]
			continue
		}
		out = append(out, line{no: i + 1, text: r})
	}
	return out
}

func splitAttr(l line, dn string) (string, string, error) {
	idx := strings.IndexByte(l.text, ':')
	if idx <= 0 {
		return "", "", &ParseError{Line: l.no, DN: dn, Msg: fmt.Sprintf("missing ':' in %q", l.text)}
	}
	name := strings.TrimSpace(l.text[:idx])
	rest := l.text[idx+1:]
	switch {
	case strings.HasPrefix(rest, ":"):
		dec, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest[1:]))
		if err != nil {
			return "", "", &ParseError{Line: l.no, DN: dn, Msg: fmt.Sprintf("bad base64 value for %s: %v", name, err)}
		}
		return name, string(dec), nil
	case strings.HasPrefix(rest, "<"):
		return "", "", &ParseError{Line: l.no, DN: dn, Msg: fmt.Sprintf("URL values are not supported (%s)", name)}
	}
	return name, strings.TrimLeft(rest, " "), nil
}

func parseRecord(block []line) (*Record, error) {
	first := block[0]
	name, value, err := splitAttr(first, "")
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(name, "version") && len(block) == 1 {
		return nil, nil
	}
	if !strings.EqualFold(name, "dn") {
		return nil, &ParseError{Line: first.no, Msg: fmt.Sprintf("record must start with dn, got %q", name)}
	}
	dn := strings.TrimSpace(value)
	if dn == "" {
		return nil, &ParseError{Line: first.no, Msg: "empty dn"}
	}
	rest := block[1:]

	changeType := "add"
	if len(rest) > 0 {
		n, v, err := splitAttr(rest[0], dn)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(n) {
		case "changetype":
			changeType = strings.ToLower(strings.TrimSpace(v))
			rest = rest[1:]
		case "control":
			return nil, &ParseError{Line: rest[0].no, DN: dn, Msg: "controls are not supported"}
		}
	}

	switch changeType {
	case "add":
		req, err := parseAdd(dn, rest)
		if err != nil {
			return nil, err
		}
		return &Record{Add: req}, nil
	case "modify":
		req, err := parseModify(dn, rest)
		if err != nil {
			return nil, err
		}
		return &Record{Modify: req}, nil
	case "delete":
		if len(rest) > 0 {
			return nil, &ParseError{Line: rest[0].no, DN: dn, Msg: "unexpected lines after changetype: delete"}
		}
		return &Record{Delete: ldap.NewDelRequest(dn, nil)}, nil
	default:
		return nil, &ParseError{Line: first.no, DN: dn, Msg: fmt.Sprintf("unsupported changetype %q", changeType)}
	}
}

func parseAdd(dn string, lines []line) (*ldap.AddRequest, error) {
	req := ldap.NewAddRequest(dn, nil)
	index := map[string]int{}
	for _, l := range lines {
		name, value, err := splitAttr(l, dn)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(name)
		if i, ok := index[key]; ok {
			req.Attributes[i].Vals = append(req.Attributes[i].Vals, value)
			continue
		}
		index[key] = len(req.Attributes)
		req.Attribute(name, []string{value})
	}
	if len(req.Attributes) == 0 {
		return nil, &ParseError{Line: 0, DN: dn, Msg: "add record has no attributes"}
	}
	return req, nil
}

func parseModify(dn string, lines []line) (*ldap.ModifyRequest, error) {
	req := ldap.NewModifyRequest(dn, nil)
	var (
		op     string
		attr   string
		values []string
		open   bool
	)
	closeGroup := func() {
		if !open {
			return
		}
		switch op {
		case "add":
			req.Add(attr, values)
		case "delete":
			req.Delete(attr, values)
		case "replace":
			req.Replace(attr, values)
		case "increment":
			req.Increment(attr, strings.Join(values, ""))
		}
		open = false
		values = nil
	}

	for _, l := range lines {
		if strings.TrimSpace(l.text) == "-" {
			if !open {
				return nil, &ParseError{Line: l.no, DN: dn, Msg: "'-' without an open modification"}
			}
			closeGroup()
			continue
		}
		name, value, err := splitAttr(l, dn)
		if err != nil {
			return nil, err
		}
		if !open {
			switch lower := strings.ToLower(name); lower {
			case "add", "delete", "replace", "increment":
				op, attr, open = lower, strings.TrimSpace(value), true
				continue
			default:
				return nil, &ParseError{Line: l.no, DN: dn, Msg: fmt.Sprintf("expected add/delete/replace, got %q", name)}
			}
		}
		if !strings.EqualFold(name, attr) {
			return nil, &ParseError{Line: l.no, DN: dn, Msg: fmt.Sprintf("attribute %q inside %s: %s group", name, op, attr)}
		}
		values = append(values, value)
	}
	closeGroup()
	if len(req.Changes) == 0 {
		return nil, &ParseError{DN: dn, Msg: "modify record has no changes"}
	}
	return req, nil
}
