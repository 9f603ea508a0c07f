// Package locale holds the fixed set of translation targets and the
// country-to-language table used when a user shares a location.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Fallback is used when a country has no mapped language.
const Fallback = "en"

// Supported lists translation targets in menu order.
var Supported = []string{"uz", "en", "ru", "tr", "ar", "zh", "es", "fr", "de", "ja", "ko", "hi"}

var flags = map[string]string{
	"uz": "🇺🇿", "en": "🇬🇧", "ru": "🇷🇺", "tr": "🇹🇷",
	"ar": "🇸🇦", "zh": "🇨🇳", "es": "🇪🇸", "fr": "🇫🇷",
	"de": "🇩🇪", "ja": "🇯🇵", "ko": "🇰🇷", "hi": "🇮🇳",
}

// serviceCodes overrides codes where the translation service differs.
var serviceCodes = map[string]string{
	"zh": "zh-CN",
}

var countryLanguages = map[string]string{
	"uz": "uz",
	"us": "en",
	"gb": "en",
	"ru": "ru",
	"tr": "tr",
	"sa": "ar",
	"cn": "zh",
	"es": "es",
	"fr": "fr",
	"de": "de",
	"jp": "ja",
	"kr": "ko",
	"in": "hi",
}

// IsSupported reports whether code is a supported target language.
func IsSupported(code string) bool {
	_, ok := flags[code]
	return ok
}

// ForCountry maps an ISO 3166 alpha-2 country code to a supported language.
func ForCountry(countryCode string) string {
	if lang, ok := countryLanguages[strings.ToLower(strings.TrimSpace(countryCode))]; ok {
		return lang
	}
	return Fallback
}

// ServiceCode returns the code the translation service expects.
func ServiceCode(code string) string {
	if c, ok := serviceCodes[code]; ok {
		return c
	}
	return code
}

// Name returns the language's self-name, e.g. "Deutsch" for "de".
func Name(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.Self.Name(tag)
	if name == "" {
		return code
	}
	return name
}

// Label returns the flag and self-name used on language buttons.
func Label(code string) string {
	if flag, ok := flags[code]; ok {
		return flag + " " + Name(code)
	}
	return Name(code)
}
