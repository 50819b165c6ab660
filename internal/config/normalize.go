package config

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is sent with link and refresh requests when none is configured.
const DefaultLocale = "en"

// NormalizeLocale reduces a user-provided locale ("ru_RU", "en-GB", " EN ")
// to its base language subtag. Unparseable input falls back to DefaultLocale.
func NormalizeLocale(locale string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if trimmed == "" {
		return DefaultLocale
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return DefaultLocale
	}
	base, conf := tag.Base()
	if conf == language.No {
		return DefaultLocale
	}
	return base.String()
}
