// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFlattenYAML(t *testing.T) {
	keys := map[string]struct{}{}
	flattenYAML("", map[string]interface{}{
		"top":        map[string]interface{}{"sub": "value"},
		"flat.dotted": "v",
	}, keys)
	for _, want := range []string{"top.sub", "flat.dotted"} {
		if _, ok := keys[want]; !ok {
			t.Fatalf("expected %s in %v", want, keys)
		}
	}
}

func TestLint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "a.go"), `package pkg
func f() {
	_ = i18n.T("cli.hello")
	ri.report("bootstrap.start", x)
	ri.report("bootstrap.gone")
	for _, s := range []struct{ msg, tmpl string }{{"bootstrap.step", "a.ldif"}} {
		_ = s
	}
}`)
	writeFile(t, filepath.Join(root, "pkg", "a_test.go"), `package pkg
var _ = i18n.T("test.only")`)
	writeFile(t, filepath.Join(root, "_vendor", "b.go"), `package b
var _ = i18n.T("skipped.key")`)
	writeFile(t, filepath.Join(root, localesDir, "en.yaml"), `"cli.hello": "Hello"
"bootstrap.start": "Start %s"
"bootstrap.step": "Step"
"cli.unused": "Never shown"
`)
	writeFile(t, filepath.Join(root, localesDir, "de.yaml"), `"cli.hello": "Hallo"
"bootstrap.start": "Start %s"
"bootstrap.step": "Schritt"
`)

	res, err := lint(root)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if res.Used != 4 {
		t.Fatalf("expected 4 used ids, got %d", res.Used)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "bootstrap.gone" {
		t.Fatalf("unexpected missing ids: %v", res.Missing)
	}
	if len(res.Orphaned) != 1 || res.Orphaned[0] != "cli.unused" {
		t.Fatalf("unexpected orphaned ids: %v", res.Orphaned)
	}
	if gaps := res.Gaps["de.yaml"]; len(gaps) != 1 || gaps[0] != "cli.unused" {
		t.Fatalf("unexpected gaps: %v", res.Gaps)
	}
	if !res.failed() {
		t.Fatalf("expected a failing result")
	}

	var buf bytes.Buffer
	printResult(&buf, res)
	if !bytes.Contains(buf.Bytes(), []byte("missing from de.yaml: cli.unused")) {
		t.Fatalf("report lacks locale gap:\n%s", buf.String())
	}
}

func TestLint_RepositoryLocales(t *testing.T) {
	res, err := lint(filepath.Join("..", ".."))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if res.failed() {
		var buf bytes.Buffer
		printResult(&buf, res)
		t.Fatalf("locales are inconsistent:\n%s", buf.String())
	}
}
