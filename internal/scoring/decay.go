// Package scoring implements the investibility scoring engine: full-replay
// aggregation of score events into a bounded current score, trend and
// history derivation, and threshold alerting.
package scoring

import (
	"math"
	"time"
)

// DecayWeight maps an event's age to a multiplicative weight in (0, 1].
// Age is measured in whole days between the event timestamp and asOf;
// fractional days are truncated, and future-dated events count as age zero.
//
// Old signals never decay to zero: a startup's history fades to half
// strength but stays permanently present in the score.
func DecayWeight(eventTime, asOf time.Time) float64 {
	ageDays := asOf.Sub(eventTime).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	days := math.Floor(ageDays)

	switch {
	case days <= 7:
		return 1.0
	case days <= 30:
		return 0.9
	case days <= 60:
		return 0.75
	case days <= 90:
		return 0.6
	default:
		return 0.5
	}
}
