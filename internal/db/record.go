// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// storedAttr is one attribute of a record as serialized in the attrs column.
type storedAttr struct {
	Name   string   `json:"n"`
	Values []string `json:"v"`
}

// record is the in-memory form of a stored entry.
type record struct {
	ndn   string
	dn    string
	attrs []storedAttr
}

func isDNAttr(name string) bool {
	return strings.EqualFold(name, "dn") || strings.EqualFold(name, "distinguishedName")
}

func (r *record) index(name string) int {
	for i := range r.attrs {
		if strings.EqualFold(r.attrs[i].Name, name) {
			return i
		}
	}
	return -1
}

// values returns the values of name. The dn pseudo attributes resolve to the
// record's DN.
func (r *record) values(name string) []string {
	if isDNAttr(name) && r.index(name) < 0 {
		return []string{r.dn}
	}
	if i := r.index(name); i >= 0 {
		return r.attrs[i].Values
	}
	return nil
}

func (r *record) addValues(name string, vals []string) {
	i := r.index(name)
	if i < 0 {
		r.attrs = append(r.attrs, storedAttr{Name: name, Values: append([]string(nil), vals...)})
		return
	}
	for _, v := range vals {
		if !containsFold(r.attrs[i].Values, v) {
			r.attrs[i].Values = append(r.attrs[i].Values, v)
		}
	}
}

func (r *record) deleteValues(name string, vals []string) {
	i := r.index(name)
	if i < 0 {
		return
	}
	if len(vals) == 0 {
		r.attrs = append(r.attrs[:i], r.attrs[i+1:]...)
		return
	}
	kept := r.attrs[i].Values[:0]
	for _, v := range r.attrs[i].Values {
		if !containsFold(vals, v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		r.attrs = append(r.attrs[:i], r.attrs[i+1:]...)
		return
	}
	r.attrs[i].Values = kept
}

func (r *record) replaceValues(name string, vals []string) {
	r.deleteValues(name, nil)
	if len(vals) > 0 {
		r.attrs = append(r.attrs, storedAttr{Name: name, Values: append([]string(nil), vals...)})
	}
}

func (r *record) incrementValues(name string, vals []string) error {
	if len(vals) != 1 {
		return fmt.Errorf("increment of %s needs exactly one value", name)
	}
	by, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return fmt.Errorf("increment of %s: %w", name, err)
	}
	i := r.index(name)
	if i < 0 || len(r.attrs[i].Values) != 1 {
		return fmt.Errorf("increment of %s needs a single existing value", name)
	}
	cur, err := strconv.ParseInt(r.attrs[i].Values[0], 10, 64)
	if err != nil {
		return fmt.Errorf("increment of %s: %w", name, err)
	}
	r.attrs[i].Values[0] = strconv.FormatInt(cur+by, 10)
	return nil
}

// apply runs the changes of a modify request against r.
func (r *record) apply(changes []ldap.Change) error {
	for _, c := range changes {
		name := c.Modification.Type
		vals := c.Modification.Vals
		switch c.Operation {
		case ldap.AddAttribute:
			r.addValues(name, vals)
		case ldap.DeleteAttribute:
			r.deleteValues(name, vals)
		case ldap.ReplaceAttribute:
			r.replaceValues(name, vals)
		case ldap.IncrementAttribute:
			if err := r.incrementValues(name, vals); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown modify operation %d on %s", c.Operation, name)
		}
	}
	return nil
}

// entry converts r to an ldap.Entry limited to the requested attributes. An
// empty list or "*" selects every attribute.
func (r *record) entry(attrs []string) *ldap.Entry {
	all := len(attrs) == 0
	for _, a := range attrs {
		if a == "*" {
			all = true
		}
	}
	e := &ldap.Entry{DN: r.dn}
	for _, a := range r.attrs {
		if !all && !containsFold(attrs, a.Name) {
			continue
		}
		e.Attributes = append(e.Attributes, ldap.NewEntryAttribute(a.Name, append([]string(nil), a.Values...)))
	}
	return e
}

func (r *record) marshalAttrs() (string, error) {
	b, err := json.Marshal(r.attrs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRecord(ndn, dn, attrs string) (*record, error) {
	r := &record{ndn: ndn, dn: dn}
	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &r.attrs); err != nil {
			return nil, fmt.Errorf("decode attributes of %q: %w", dn, err)
		}
	}
	return r, nil
}

func recordFromAdd(req *ldap.AddRequest) (*record, error) {
	ndn, err := NormalizeDN(req.DN)
	if err != nil {
		return nil, err
	}
	if ndn == "" {
		return nil, fmt.Errorf("%w: empty DN", ErrInvalidDN)
	}
	r := &record{ndn: ndn, dn: strings.TrimSpace(req.DN)}
	for _, a := range req.Attributes {
		r.addValues(a.Type, a.Vals)
	}
	return r, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
