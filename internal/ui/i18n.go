package ui

import (
	"embed"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-lunar-birthday/internal/config"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// SetupI18n initializes the translation bundle and detects available languages.
func (app *LunarBirthdayApp) SetupI18n() {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
		return
	}

	var detectedLangs []string

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "active.") || !strings.HasSuffix(name, ".json") {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, "active."), ".json")
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}

		detectedLangs = append(detectedLangs, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
			config.LogKeyFile, name,
		)
	}

	app.locMut.Lock()
	app.SupportedLanguages = detectedLangs
	app.I18nBundle = bundle
	app.locMut.Unlock()

	app.UpdateLocalizer()
}

// UpdateLocalizer refreshes the translator based on the user's language preference.
func (app *LunarBirthdayApp) UpdateLocalizer() {
	lang := app.Preferences.StringWithFallback(config.PrefLanguage, config.DefaultLanguage)

	app.locMut.Lock()
	defer app.locMut.Unlock()
	if app.I18nBundle == nil {
		return
	}
	app.Localizer = i18n.NewLocalizer(app.I18nBundle, lang)
}

// localize renders a message, or returns "" when it cannot.
// Timer callbacks call it off the UI goroutine, hence the lock.
func (app *LunarBirthdayApp) localize(lc *i18n.LocalizeConfig) string {
	app.locMut.RLock()
	loc := app.Localizer
	app.locMut.RUnlock()

	if loc == nil {
		return ""
	}
	msg, err := loc.Localize(lc)
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, lc.MessageID,
			config.LogKeyError, err,
		)
		return ""
	}
	return msg
}

// GetMsg is a helper to translate a key safely. Missing keys come back as is.
func (app *LunarBirthdayApp) GetMsg(key string) string {
	if msg := app.localize(&i18n.LocalizeConfig{MessageID: key}); msg != "" {
		return msg
	}
	return key
}
