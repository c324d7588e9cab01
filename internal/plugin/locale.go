package plugin

import (
	"fmt"
	"os"
	"strings"
)

// ResolveLocalized returns the best value for key from a manifest block
// containing localized variants. Resolution order for locale "de_AT":
//
//	key[de_AT] → key[de] → key
//
// Missing and non-string variants fall through to the next candidate. The
// result is the empty string when no candidate is present.
func ResolveLocalized(values map[string]any, key, locale string) string {
	if locale != "" {
		if v := stringValue(values, fmt.Sprintf("%s[%s]", key, locale)); v != "" {
			return v
		}

		if lang, _, ok := strings.Cut(locale, "_"); ok {
			if v := stringValue(values, fmt.Sprintf("%s[%s]", key, lang)); v != "" {
				return v
			}
		}
	}

	return stringValue(values, key)
}

func stringValue(values map[string]any, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}

	return ""
}

// SystemLocale derives the "lang_COUNTRY" locale from the environment,
// checking LC_ALL, LC_MESSAGES and LANG in that order. Encoding suffixes
// such as ".UTF-8" are stripped. Returns "" when nothing usable is set.
func SystemLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}

		v, _, _ = strings.Cut(v, ".")

		return v
	}

	return ""
}
