// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"bytes"
	"errors"
	mrand "math/rand"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/toeirei/dcprovision/internal/config"
)

func TestNTTime(t *testing.T) {
	if got := NTTime(time.Unix(0, 0)); got != "116444736000000000" {
		t.Fatalf("NTTime(epoch) = %s", got)
	}
	if got := NTTime(time.Unix(1, 500)); got != "116444736010000005" {
		t.Fatalf("NTTime(1s+500ns) = %s", got)
	}
}

func TestLDAPTimeAndDateString(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	if got := LDAPTime(ts); got != "20260102020405.0Z" {
		t.Fatalf("LDAPTime = %s", got)
	}
	if got := DateString(ts); got != "2026010202" {
		t.Fatalf("DateString = %s", got)
	}
}

func TestFixedClock(t *testing.T) {
	c := FixedClock{T: testTime}
	if !c.Now().Equal(testTime) {
		t.Fatal("FixedClock drifted")
	}
}

var sidPattern = regexp.MustCompile(`^S-1-5-21-\d+-\d+-\d+$`)

func TestRandom_Unique(t *testing.T) {
	r := NewRandom(mrand.New(mrand.NewSource(1)))
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		g, err := r.GUID()
		if err != nil {
			t.Fatal(err)
		}
		s, err := r.SID()
		if err != nil {
			t.Fatal(err)
		}
		p, err := r.Password(12)
		if err != nil {
			t.Fatal(err)
		}
		if !sidPattern.MatchString(s) {
			t.Fatalf("bad SID %q", s)
		}
		if len(p) != 12 || strings.Trim(p, passwordAlphabet) != "" {
			t.Fatalf("bad password %q", p)
		}
		for _, v := range []string{g, s, p} {
			if seen[v] {
				t.Fatalf("value %q repeated", v)
			}
			seen[v] = true
		}
	}
}

func TestRandom_PasswordRejectsOutOfRangeBytes(t *testing.T) {
	// 0xFF and 0x45 fall outside the alphabet once masked and are skipped.
	r := NewRandom(bytes.NewReader([]byte{0xFF, 0x43, 0x45, 0x00}))
	p, err := r.Password(2)
	if err != nil {
		t.Fatal(err)
	}
	if p != ",a" {
		t.Fatalf("expected \",a\", got %q", p)
	}
}

func TestRandom_RefusesRepeats(t *testing.T) {
	r := NewRandom(bytes.NewReader(make([]byte, 4096)))
	if _, err := r.GUID(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GUID(); err == nil {
		t.Fatal("expected an error from a source that keeps repeating")
	}
}

func TestFailure(t *testing.T) {
	cause := errors.New("disk full")
	f := Fatalf(PhaseCommit, cause, "commit %s", "sam.ldb").WithHint("free some space")
	if f.Error() != "commit: commit sam.ldb: disk full" {
		t.Fatalf("Error() = %q", f.Error())
	}
	if !errors.Is(f, cause) || !IsFatal(f) || HintOf(f) != "free some space" {
		t.Fatalf("unexpected failure %+v", f)
	}
	tol := Toleratedf(PhaseNameMappings, nil, "name mapping incomplete")
	if IsFatal(tol) || tol.Kind.String() != "tolerated" {
		t.Fatalf("tolerated failure reported fatal")
	}
	if IsFatal(nil) || !IsFatal(cause) {
		t.Fatal("IsFatal on plain errors")
	}
}

func TestDefaultPaths(t *testing.T) {
	p := &mapParams{values: map[string]string{
		config.KeyPrivateDir:  "/var/lib/dcprovision",
		config.KeyConfigFile:  "/etc/dcprovision/config.yaml",
		config.KeySamDatabase: "postgres://db/sam",
	}}
	ps := DefaultPaths(p, "example.com")
	cases := []struct{ got, want string }{
		{ps.ConfigFile, "/etc/dcprovision/config.yaml"},
		{ps.Secrets, filepath.Join("/var/lib/dcprovision", "secrets.ldb")},
		{ps.HKLM, filepath.Join("/var/lib/dcprovision", "hklm.ldb")},
		{ps.ShareConf, filepath.Join("/var/lib/dcprovision", "share.ldb")},
		{ps.DNS, filepath.Join("/var/lib/dcprovision", "example.com.zone")},
		{ps.LDAPBaseDNLDIF, filepath.Join("/var/lib/dcprovision", "example.com.ldif")},
		{ps.SamDB, "postgres://db/sam"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
	delete(p.values, config.KeySamDatabase)
	if got := DefaultPaths(p, "example.com").SamDB; got != filepath.Join("/var/lib/dcprovision", "sam.ldb") {
		t.Errorf("default sam path %q", got)
	}
}

func TestEscapeRDNValue(t *testing.T) {
	cases := map[string]string{
		"alice":    "alice",
		"smith, j": `smith\, j`,
		"#hash":    `\#hash`,
		"a+b=c":    `a\+b\=c`,
		" leading": `\ leading`,
	}
	for in, want := range cases {
		if got := escapeRDNValue(in); got != want {
			t.Errorf("escapeRDNValue(%q) = %q, want %q", in, got, want)
		}
	}
}
