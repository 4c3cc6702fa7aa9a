package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/calibervc/dealscope/pkg/models"
)

// GetHistory replays the full event log day by day over [now - days, now]
// and returns a point-in-time score series for charting. The entire log is
// loaded, not just the window, because each day's score depends on every
// prior event decayed as of that day. Each day's score goes through the
// same capped aggregation as a recalculation, so today's point always
// equals what Recalculate would store.
//
// Days without events are skipped except the window's first day and the
// current day, so the series is sparse but always anchored at both ends.
// O(days × events); fine for deal-tracking volumes.
func (e *Engine) GetHistory(ctx context.Context, subjectID string, days int) ([]models.HistoryPoint, error) {
	subject, err := e.subjects.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	events, err := e.events.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}

	if days <= 0 {
		days = 30
	}

	now := e.now().UTC()
	base := subject.Anchor()
	today := now.Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -days)

	var series []models.HistoryPoint
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		endOfDay := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		// The current day is evaluated as of now, not its future end, so
		// today's point matches what Recalculate would produce.
		asOf := endOfDay
		if asOf.After(now) {
			asOf = now
		}

		var upTo []*models.ScoreEvent
		var onDay int
		for _, ev := range events {
			ts := ev.Timestamp.UTC()
			// A recalculation replays the whole log, back-dated or not, so
			// the current day must too; earlier days cut off at their end.
			if ts.After(endOfDay) && !day.Equal(today) {
				continue
			}
			if !ts.After(endOfDay) && !ts.Before(day) {
				onDay++
			}
			upTo = append(upTo, ev)
		}

		if onDay == 0 && !day.Equal(start) && !day.Equal(today) {
			continue
		}

		breakdown := aggregate(subject.Breakdown, upTo, asOf)
		series = append(series, models.HistoryPoint{
			Date:   day.Format("2006-01-02"),
			Score:  models.RoundedScore(base + breakdown.Adjustments()),
			Events: onDay,
		})
	}

	return series, nil
}
