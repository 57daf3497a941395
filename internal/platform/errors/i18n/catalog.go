// Package i18n renders user-facing error messages for domain error codes.
//
// Messages live in embedded YAML files (one per locale) and are registered
// with an x/text message catalog; metadata is substituted with text/template.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the fallback locale for every lookup.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds the message catalogs for every supported locale.
type Bundle struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
	keys    map[language.Tag]map[string]struct{}
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
	defaultErr    error
)

// Default returns the bundle built from the embedded locale files.
func Default() *Bundle {
	defaultOnce.Do(func() {
		defaultBundle, defaultErr = Load(embeddedLocales)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("load embedded error catalogs: %v", defaultErr))
	}
	return defaultBundle
}

// Load builds a bundle from locales/*.yaml in fsys.
func Load(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	bundle := &Bundle{
		builder: catalog.NewBuilder(catalog.Fallback(base)),
		keys:    map[language.Tag]map[string]struct{}{},
	}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("%s: parse locale %q: %w", path, file.Locale, err)
		}
		if _, exists := bundle.keys[tag]; exists {
			return nil, fmt.Errorf("%s: locale %s defined twice", path, tag)
		}
		keys := make(map[string]struct{}, len(file.Messages))
		for key, value := range file.Messages {
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("%s: message key cannot be blank", path)
			}
			if err := bundle.builder.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("%s: set %s: %w", path, key, err)
			}
			keys[key] = struct{}{}
		}
		bundle.keys[tag] = keys
		if tag == base {
			bundle.tags = append([]language.Tag{tag}, bundle.tags...)
		} else {
			bundle.tags = append(bundle.tags, tag)
		}
	}
	if _, ok := bundle.keys[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	bundle.matcher = language.NewMatcher(bundle.tags)
	return bundle, nil
}

// Locales returns the supported locale tags, base locale first.
func (b *Bundle) Locales() []language.Tag {
	out := make([]language.Tag, len(b.tags))
	copy(out, b.tags)
	return out
}

// Match picks the best supported locale for an Accept-Language header value.
func (b *Bundle) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.tags[0]
	}
	_, index, confidence := b.matcher.Match(tags...)
	if confidence == language.No {
		return b.tags[0]
	}
	return b.tags[index]
}

// Format renders the message for code in locale, substituting metadata.
// Unknown codes render as the code itself.
func (b *Bundle) Format(locale language.Tag, code string, metadata map[string]string) string {
	if !b.has(code) {
		return code
	}
	printer := message.NewPrinter(locale, message.Catalog(b.builder))
	tmpl := printer.Sprintf(code)

	if metadata == nil {
		metadata = map[string]string{}
	}
	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

func (b *Bundle) has(code string) bool {
	for _, keys := range b.keys {
		if _, ok := keys[code]; ok {
			return true
		}
	}
	return false
}
