// Package i18n resolves the dotted message keys used by the UI into localized text.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

// Translator looks up messages for one language, falling back to English and then to the key itself.
type Translator struct {
	localizer *i18n.Localizer
	lang      string
	log       *zap.SugaredLogger
}

var bundle = mustLoadBundle()

func mustLoadBundle() *i18n.Bundle {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	entries, err := locales.ReadDir("locales")
	if err != nil {
		panic(fmt.Errorf("failed to list embedded locales: %w", err))
	}
	for _, entry := range entries {
		if _, err := b.LoadMessageFileFS(locales, path.Join("locales", entry.Name())); err != nil {
			panic(fmt.Errorf("failed to load locale %v: %w", entry.Name(), err))
		}
	}
	return b
}

// Languages lists the language tags that have a message file.
func Languages() []string {
	tags := bundle.LanguageTags()
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.String())
	}
	return names
}

// New creates a Translator for the given language (e.g. "en", "ne", or an Accept-Language value).
func New(lang string) *Translator {
	return &Translator{
		localizer: i18n.NewLocalizer(bundle, lang),
		lang:      lang,
		log:       zap.S().Named("i18n"),
	}
}

// T returns the message for key. Unknown keys are returned unchanged.
func (t *Translator) T(key string) string {
	msg, err := t.localizer.Localize(&i18n.LocalizeConfig{MessageID: key})
	if err != nil && msg == "" {
		t.log.Debugf("no message for %q in %q: %v", key, t.lang, err)
		return key
	}
	return msg
}
