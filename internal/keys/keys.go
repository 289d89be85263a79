package keys

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeyLength is the width of a source key in characters.
	KeyLength = 18

	// localeOffset is where the locale code is spliced into the hash.
	localeOffset = 3
)

// ErrInvalidLocale is matched by every locale validation failure.
var ErrInvalidLocale = errors.New("invalid locale")

// InvalidLocaleError reports the locale that could not be used for key derivation.
type InvalidLocaleError struct {
	Locale string
}

func (e *InvalidLocaleError) Error() string {
	return fmt.Sprintf("invalid locale %q: need at least two leading ASCII letters", e.Locale)
}

// Is makes errors.Is(err, ErrInvalidLocale) true for *InvalidLocaleError.
func (e *InvalidLocaleError) Is(target error) bool {
	return target == ErrInvalidLocale
}

// SourceKey computes the content key for text in the given locale.
// Only the language letters of locale participate: "pt-BR" and "pt" share keys.
func SourceKey(text, locale string) (string, error) {
	code, err := localeCode(locale)
	if err != nil {
		return "", err
	}

	sum := md5.Sum([]byte(text))
	key := []byte(hex.EncodeToString(sum[:])[:KeyLength])
	copy(key[localeOffset:localeOffset+2], code)
	return string(key), nil
}

// MustSourceKey is like SourceKey but panics on error.
// Use only in tests or when the locale is known to be valid.
func MustSourceKey(text, locale string) string {
	key, err := SourceKey(text, locale)
	if err != nil {
		panic(err)
	}
	return key
}

// TranslationKey identifies a (source key, target locale, engine) row locally.
// The engine is normally empty because rows carry their own engine column.
func TranslationKey(sourceKey, targetLocale, engine string) string {
	if engine == "" {
		return sourceKey + "|" + targetLocale
	}
	return sourceKey + "|" + targetLocale + "|" + engine
}

// TextsToKeys maps every text to its source key in locale.
func TextsToKeys(texts []string, locale string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		k, err := SourceKey(t, locale)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

// localeCode returns the upper-cased two-letter language code of locale.
func localeCode(locale string) ([]byte, error) {
	s := strings.TrimSpace(locale)
	if len(s) < 2 || !isASCIILetter(s[0]) || !isASCIILetter(s[1]) {
		return nil, &InvalidLocaleError{Locale: locale}
	}
	return []byte(strings.ToUpper(s[:2])), nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
