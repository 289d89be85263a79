package syncer

import "github.com/survos/lingua/internal/model"

// epsilon absorbs float error in the exact ratio, not display rounding.
const epsilon = 1e-9

// MeetsThreshold reports whether every locale with rows is at or above
// threshold percent. Locales with no rows are ignored; with no such locale
// at all the threshold is met vacuously.
//
// The check uses the exact translated/total ratio. LocaleStats.Pct is
// rounded for display and would let 1999 of 2000 pass a threshold of 100.
func MeetsThreshold(stats []model.LocaleStats, threshold float64) bool {
	for _, s := range stats {
		if s.Total == 0 {
			continue
		}
		exact := float64(s.Translated) * 100 / float64(s.Total)
		if exact+epsilon < threshold {
			return false
		}
	}
	return true
}
