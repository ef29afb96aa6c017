// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

// package i18n provides localisation of operator-facing messages. It uses the
// go-i18n library to load the embedded YAML translation files; progress and
// guidance text reported through the bootstrap message sink is looked up here.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// localeFS embeds the YAML translation files from the 'locales' directory
// into the application binary.
//
//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   string
)

// Init initializes the i18n bundle and sets up the localizer for a specific language.
// It parses all embedded YAML files from the 'locales' directory.
func Init(lang string) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			continue
		}
		_, _ = b.ParseMessageFileBytes(data, f.Name())
	}

	if lang == "" {
		lang = "en"
	}
	mu.Lock()
	bundle = b
	localizer = i18n.NewLocalizer(b, lang)
	current = lang
	mu.Unlock()
}

// T translates a message by its ID. Extra arguments are applied fmt-style to
// the translated text. If the ID is unknown the ID itself is returned, so a
// missing translation never hides a message from the operator.
func T(messageID string, args ...interface{}) string {
	mu.RLock()
	l := localizer
	mu.RUnlock()
	if l == nil {
		Init("en")
		mu.RLock()
		l = localizer
		mu.RUnlock()
	}
	// A missing translation falls back to the bundle's default language; go-i18n
	// reports that as an error alongside a usable message.
	msg, _ := l.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if msg == "" {
		msg = messageID
		if len(args) > 0 {
			return msg + " " + strings.TrimSpace(fmt.Sprintln(args...))
		}
		return msg
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// SetLang changes the active language of the localizer.
func SetLang(lang string) {
	Init(lang)
}

// GetLang returns the language the localizer was last initialised with.
func GetLang() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// AvailableLocales lists the locale tags that have an embedded file.
func AvailableLocales() []string {
	files, _ := fs.ReadDir(localeFS, "locales")
	var out []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(out)
	return out
}
