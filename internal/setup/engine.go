// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// Package setup renders the record and file templates used during
// provisioning. Templates contain ${NAME} placeholders that are replaced from
// a Context.
package setup

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/toeirei/dcprovision/internal/ldif"
)

//go:embed templates
var embedded embed.FS

var placeholder = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// MissingError lists the placeholders a template used but the context did
// not define.
type MissingError struct {
	Template string
	Names    []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("template %s: undefined variables: %s", e.Template, strings.Join(e.Names, ", "))
}

// Engine loads templates from FS and renders them.
type Engine struct {
	FS afero.Fs
}

// DefaultTemplates returns the built-in template set as a read-only fs.
func DefaultTemplates() afero.Fs {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return afero.FromIOFS{FS: sub}
}

// New returns an engine reading from setupDir. Files found there override the
// built-in templates of the same name; an empty setupDir uses only the
// built-in set.
func New(setupDir string) *Engine {
	base := DefaultTemplates()
	if setupDir == "" {
		return &Engine{FS: base}
	}
	return &Engine{FS: afero.NewCopyOnWriteFs(base, afero.NewBasePathFs(afero.NewOsFs(), setupDir))}
}

// Load returns the raw template text.
func (e *Engine) Load(name string) (string, error) {
	data, err := afero.ReadFile(e.FS, name)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", name, err)
	}
	return string(data), nil
}

// Render loads name and substitutes every placeholder from ctx.
func (e *Engine) Render(name string, ctx Context) (string, error) {
	text, err := e.Load(name)
	if err != nil {
		return "", err
	}
	out, err := Substitute(text, ctx)
	if err != nil {
		if me, ok := err.(*MissingError); ok {
			me.Template = name
		}
		return "", err
	}
	return out, nil
}

// RenderLDIF renders name and parses the result as LDIF.
func (e *Engine) RenderLDIF(name string, ctx Context) ([]*ldif.Record, error) {
	text, err := e.Render(name, ctx)
	if err != nil {
		return nil, err
	}
	recs, err := ldif.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return recs, nil
}

// RenderFile renders name into dest on fsys, replacing any existing file.
func (e *Engine) RenderFile(fsys afero.Fs, name, dest string, ctx Context, perm os.FileMode) error {
	text, err := e.Render(name, ctx)
	if err != nil {
		return err
	}
	if err := fsys.Remove(dest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", dest, err)
	}
	if dir := filepath.Dir(dest); dir != "" && dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fsys, dest, []byte(text), perm); err != nil {
		return fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	return nil
}

// Substitute replaces ${NAME} placeholders in text. Generators run once per
// occurrence. All undefined names are collected into a *MissingError.
func Substitute(text string, ctx Context) (string, error) {
	missing := map[string]bool{}
	out := placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := m[2 : len(m)-1]
		v, ok := ctx[name]
		if !ok || v == nil {
			missing[name] = true
			return m
		}
		return v.render()
	})
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", &MissingError{Names: names}
	}
	return out, nil
}
