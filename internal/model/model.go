// Package model holds the local data types shared by the store and the sync
// components. It imports nothing internal.
package model

import "math"

// Status is the lifecycle place of a translation stub.
type Status string

const (
	StatusNew        Status = "new"
	StatusQueued     Status = "queued"
	StatusTranslated Status = "translated"
	StatusReviewed   Status = "reviewed"
)

// Valid reports whether s is a known lifecycle place.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusQueued, StatusTranslated, StatusReviewed:
		return true
	}
	return false
}

// DefaultEngine is the engine recorded on stubs created locally.
const DefaultEngine = "babel"

// SourceString is an immutable piece of original content.
// Code is the content key of (Text, SourceLocale).
type SourceString struct {
	Code         string `json:"code"`
	Text         string `json:"text"`
	SourceLocale string `json:"source_locale"`
}

// TranslationStub is the (source, target locale, engine) row that receives a
// translation. An empty Text means the stub is still pending.
type TranslationStub struct {
	Key          string `json:"key"`
	TargetLocale string `json:"target_locale"`
	Engine       string `json:"engine"`
	Text         string `json:"text,omitempty"`
	Status       Status `json:"status"`
}

// Pending reports whether the stub still needs a translation.
func (t TranslationStub) Pending() bool {
	return t.Text == ""
}

// PendingRow is one untranslated stub as read for push or pull.
// Text is the original content; it is empty for key-only pull reads.
type PendingRow struct {
	Key          string
	Text         string
	SourceLocale string
	TargetLocale string
}

// LocaleStats is the completion of one target locale.
type LocaleStats struct {
	Locale     string  `json:"locale"`
	Total      int     `json:"total"`
	Translated int     `json:"translated"`
	Missing    int     `json:"missing"`
	Pct        float64 `json:"pct"`
}

// NewLocaleStats derives Missing and Pct (rounded to one decimal) from the counts.
func NewLocaleStats(locale string, total, translated int) LocaleStats {
	s := LocaleStats{Locale: locale, Total: total, Translated: translated}
	if total > 0 {
		s.Missing = max(0, total-translated)
		s.Pct = math.Round(float64(translated)/float64(total)*1000) / 10
	}
	return s
}
