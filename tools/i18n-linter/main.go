// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks that every message id referenced from Go source exists
// in the primary locale and that every other locale carries the same ids.
//
// Usage:
//
//	go run ./tools/i18n-linter [root]
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

// Message ids are passed to i18n.T or a report helper, or open a step table
// entry; all three spell them as a quoted "area.name" literal.
var keyRe = regexp.MustCompile(`(?:i18n\.T\(|report\(|\{)"([a-z]+\.[a-z0-9_.]+)"`)

// result lists problems per category, each sorted.
type result struct {
	Used     int
	Missing  []string            // used in code, absent from the primary locale
	Orphaned []string            // in the primary locale, never used
	Gaps     map[string][]string // locale file -> ids missing from it
}

func (r *result) failed() bool {
	return len(r.Missing) > 0 || len(r.Gaps) > 0
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	res, err := lint(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(2)
	}
	printResult(os.Stdout, res)
	if res.failed() {
		os.Exit(1)
	}
}

func lint(root string) (*result, error) {
	used, err := findUsedKeys(root)
	if err != nil {
		return nil, fmt.Errorf("scan sources: %w", err)
	}
	dir := filepath.Join(root, localesDir)
	primary, err := loadKeysFromLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", primaryLocale, err)
	}

	res := &result{Used: len(used), Gaps: map[string][]string{}}
	res.Missing = difference(used, primary)
	res.Orphaned = difference(primary, used)

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if filepath.Base(f) == primaryLocale {
			continue
		}
		keys, err := loadKeysFromLocale(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
		if gaps := difference(primary, keys); len(gaps) > 0 {
			res.Gaps[filepath.Base(f)] = gaps
		}
	}
	return res, nil
}

func printResult(w io.Writer, r *result) {
	fmt.Fprintf(w, "%d message ids referenced from source\n", r.Used)
	for _, k := range r.Missing {
		fmt.Fprintf(w, "missing from %s: %s\n", primaryLocale, k)
	}
	for _, k := range r.Orphaned {
		fmt.Fprintf(w, "unused: %s\n", k)
	}
	names := make([]string, 0, len(r.Gaps))
	for n := range r.Gaps {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		for _, k := range r.Gaps[n] {
			fmt.Fprintf(w, "missing from %s: %s\n", n, k)
		}
	}
	if !r.failed() {
		fmt.Fprintln(w, "locales are consistent")
	}
}

// findUsedKeys scans non-test .go files below root. Hidden, underscore and
// tools directories are skipped.
func findUsedKeys(root string) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "tools" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, m := range keyRe.FindAllStringSubmatch(string(content), -1) {
			keys[m[1]] = struct{}{}
		}
		return nil
	})
	return keys, err
}

// loadKeysFromLocale reads a YAML file and returns a flat map of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}
	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML converts nested maps into dot-separated keys.
func flattenYAML(prefix string, node interface{}, keys map[string]struct{}) {
	switch v := node.(type) {
	case map[string]interface{}:
		for k, val := range v {
			next := k
			if prefix != "" {
				next = prefix + "." + k
			}
			flattenYAML(next, val, keys)
		}
	default:
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
	}
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
