package scoring

import (
	"math"
	"time"

	"github.com/calibervc/dealscope/pkg/models"
)

// trendWindow is the lookback for trend derivation.
const trendWindow = 30 * 24 * time.Hour

// trendDeltaThreshold separates up/down from stable.
const trendDeltaThreshold = 2.0

// trendOf derives the 30-day delta and trend label from the event log.
//
// Unlike the aggregator's all-time decayed view, the trend is a short, raw
// lens: events inside the window contribute impact × confidence with no
// decay, and red-flag events always penalize regardless of their sign. It
// answers "is this deal improving lately", not "what is it worth overall".
func trendOf(events []*models.ScoreEvent, now time.Time) (models.ScoreTrend, float64) {
	cutoff := now.Add(-trendWindow)

	var sum float64
	for _, ev := range events {
		if ev.Timestamp.Before(cutoff) || ev.Timestamp.After(now) {
			continue
		}
		raw := models.ClampImpact(ev.Impact) * models.ClampConfidence(ev.Confidence)
		if ev.Category == models.CategoryRedFlag {
			sum -= math.Abs(raw)
		} else {
			sum += raw
		}
	}

	delta := math.Round(sum*10) / 10

	switch {
	case delta > trendDeltaThreshold:
		return models.TrendUp, delta
	case delta < -trendDeltaThreshold:
		return models.TrendDown, delta
	default:
		return models.TrendStable, delta
	}
}
