package i18n

import (
	"fmt"
	"strings"
)

// Locale selects the language of every sentence and label the intent produces
type Locale string

const (
	Thai    Locale = "th"
	English Locale = "en"
)

// ParseLocale accepts "th"/"thai" and "en"/"english" in any case
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "th", "thai", "th-th":
		return Thai, nil
	case "en", "english", "en-us", "en-gb":
		return English, nil
	default:
		return "", fmt.Errorf("invalid locale %q (allowed: th, en)", s)
	}
}

func (l Locale) String() string { return string(l) }

// Text is a string available in every supported locale
type Text struct {
	TH string
	EN string
}

// In returns the text for l, falling back to English for unknown locales
func (t Text) In(l Locale) string {
	if l == Thai {
		return t.TH
	}
	return t.EN
}
