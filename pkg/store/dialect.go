package store

import (
	"math"
	"time"
)

// computeScore is the application-side score formula: floor(ln(count)*600 +
// unix_seconds(last_seen)). When count is 1 or less, ln(count) is taken as 0
// (ln(1) is 0 anyway, and ln(0) would be negative infinity), so score
// collapses to floor(unix_seconds(date)).
func computeScore(count int64, lastSeen time.Time) float64 {
	lnCount := 0.0
	if count > 1 {
		lnCount = math.Log(float64(count))
	}
	return math.Floor(lnCount*600 + float64(lastSeen.Unix()))
}
