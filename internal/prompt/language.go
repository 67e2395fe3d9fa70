package prompt

import (
	"errors"
	"fmt"
	"strings"
)

type Language string

const (
	English   Language = "english"
	Norwegian Language = "norwegian"
	Chinese   Language = "chinese"
	Spanish   Language = "spanish"
	French    Language = "french"
	German    Language = "german"
)

// Languages is the display order offered by setup.
var Languages = []Language{English, Norwegian, Chinese, Spanish, French, German}

var ErrUnknownLanguage = errors.New("unsupported language")

func ParseLanguage(raw string) (Language, error) {
	key := Language(strings.ToLower(strings.TrimSpace(raw)))
	for _, lang := range Languages {
		if lang == key {
			return lang, nil
		}
	}
	names := make([]string, 0, len(Languages))
	for _, lang := range Languages {
		names = append(names, string(lang))
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownLanguage, raw, strings.Join(names, ", "))
}
