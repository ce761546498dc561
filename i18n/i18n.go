// Package i18n translates user-facing message codes. Catalogues are TOML files
// embedded at build time; English is the default and the fallback.
package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const DefaultLang = "en"

//go:embed translation/*.toml
var catalogues embed.FS

var (
	supported = []language.Tag{language.English, language.French}
	matcher   = language.NewMatcher(supported)

	bundleOnce sync.Once
	bundle     *goi18n.Bundle
	bundleErr  error
)

// Bundle returns the shared message bundle, loading the catalogues on first use.
func Bundle() (*goi18n.Bundle, error) {
	bundleOnce.Do(func() {
		b := goi18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		bundleErr = fs.WalkDir(catalogues, "translation", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := catalogues.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := b.ParseMessageFileBytes(data, path); err != nil {
				return fmt.Errorf("i18n: parse %s: %w", path, err)
			}
			return nil
		})
		bundle = b
	})
	return bundle, bundleErr
}

// Supported reports whether lang is a language with a catalogue.
func Supported(lang string) bool {
	for _, t := range supported {
		if t.String() == lang {
			return true
		}
	}
	return false
}

// DetectLanguage picks the best supported language for an Accept-Language
// header value, or DefaultLang when nothing matches.
func DetectLanguage(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return DefaultLang
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	return supported[idx].String()
}

// T translates code into lang. Unknown languages fall back to English and
// unknown codes are returned unchanged.
func T(lang, code string) string {
	return Tf(lang, code, nil)
}

// Tf is T with template data for messages that take parameters.
func Tf(lang, code string, data map[string]any) string {
	b, err := Bundle()
	if err != nil {
		return code
	}
	msg, err := goi18n.NewLocalizer(b, lang, DefaultLang).Localize(&goi18n.LocalizeConfig{
		MessageID:    code,
		TemplateData: data,
	})
	var notFound *goi18n.MessageNotFoundErr
	if err != nil && (errors.As(err, &notFound) || msg == "") {
		return code
	}
	return msg
}
