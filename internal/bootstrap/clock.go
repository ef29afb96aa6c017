// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"fmt"
	"strconv"
	"time"
)

// Clock provides an abstraction over time.Now for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// ntEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01.
const ntEpochOffset = 11644473600

// NTTime returns t as 100ns intervals since 1601-01-01 UTC.
func NTTime(t time.Time) string {
	t = t.UTC()
	v := (t.Unix()+ntEpochOffset)*10_000_000 + int64(t.Nanosecond()/100)
	return strconv.FormatInt(v, 10)
}

// LDAPTime returns t in generalized time form.
func LDAPTime(t time.Time) string {
	return t.UTC().Format("20060102150405") + ".0Z"
}

// DateString returns the YYYYMMDDHH form used for zone serial numbers.
func DateString(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d%02d%02d%02d", t.Year(), int(t.Month()), t.Day(), t.Hour())
}
