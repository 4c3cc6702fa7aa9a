package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/calibervc/dealscope/pkg/models"
)

// recalculate folds the subject's full event log into a fresh breakdown and
// current score, persists the state, and evaluates alerts against the
// previously stored score. triggers are the events that caused the
// recalculation, nil for explicit rebuilds.
//
// Recomputing from scratch on every call, rather than keeping incremental
// counters, is the engine's central design decision: adding, correcting, or
// back-dating an event always yields a consistent result, and decay weights
// are re-derived as of now instead of frozen at insert time.
func (e *Engine) recalculate(ctx context.Context, subject *models.SubjectScore, triggers []*models.ScoreEvent) (*ScoreResult, error) {
	events, err := e.events.ListBySubject(ctx, subject.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}

	now := e.now()
	breakdown := aggregate(subject.Breakdown, events, now)
	score := models.RoundedScore(subject.Anchor() + breakdown.Adjustments())
	trend, delta := trendOf(events, now)

	previousScore := subject.CurrentScore
	hadScore := subject.HasScore()

	subject.Breakdown = breakdown
	subject.CurrentScore = score
	subject.Trend = trend
	subject.TrendDelta = delta
	subject.ScoreUpdatedAt.Int64 = now.UnixMilli()
	subject.ScoreUpdatedAt.Valid = true

	if err := e.subjects.Save(ctx, subject); err != nil {
		return nil, fmt.Errorf("save score state: %w", err)
	}

	result := &ScoreResult{
		CurrentScore: score,
		Breakdown:    breakdown,
		Trend:        trend,
		TrendDelta:   delta,
	}

	// No alert on a subject's first-ever score.
	if hadScore {
		alerts := e.evaluateAlerts(subject.SubjectID, previousScore, score, triggers, now)
		if len(alerts) > 0 {
			if err := e.alerts.AppendAlerts(ctx, alerts); err != nil {
				return nil, fmt.Errorf("append alerts: %w", err)
			}
			result.Alerts = alerts
		}
	}

	e.log.Debug().
		Str("subject", subject.SubjectID).
		Int("events", len(events)).
		Int("previous", previousScore).
		Int("score", score).
		Str("trend", string(trend)).
		Int("alerts", len(result.Alerts)).
		Msg("score recalculated")

	return result, nil
}

// aggregate replays the event log into a breakdown. Bases are carried over
// untouched from the stored breakdown; every adjustment field starts from
// zero and is rebuilt with impact, confidence, and decay applied per event.
func aggregate(stored models.ScoreBreakdown, events []*models.ScoreEvent, asOf time.Time) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		Team:     models.CategoryScore{Base: stored.Team.Base, Subcriteria: stored.Team.Subcriteria},
		Market:   models.CategoryScore{Base: stored.Market.Base, Subcriteria: stored.Market.Subcriteria},
		Product:  models.CategoryScore{Base: stored.Product.Base, Subcriteria: stored.Product.Subcriteria},
		Traction: models.CategoryScore{Base: stored.Traction.Base, Subcriteria: stored.Traction.Subcriteria},
		Deal:     models.CategoryScore{Base: stored.Deal.Base, Subcriteria: stored.Deal.Subcriteria},
	}

	// Red flags accumulate sign-preserving and are reported as a capped
	// magnitude afterwards.
	var redFlags float64

	for _, ev := range events {
		weighted := ev.WeightedImpact(DecayWeight(ev.Timestamp, asOf))

		switch ev.Category {
		case models.CategoryTeam:
			b.Team.Adjusted += weighted
		case models.CategoryMarket:
			b.Market.Adjusted += weighted
		case models.CategoryProduct:
			b.Product.Adjusted += weighted
		case models.CategoryTraction:
			b.Traction.Adjusted += weighted
		case models.CategoryDeal:
			b.Deal.Adjusted += weighted
		case models.CategoryCommunication:
			b.Communication += weighted
		case models.CategoryMomentum:
			b.Momentum += weighted
		case models.CategoryRedFlag:
			redFlags += weighted
		}
	}

	b.Communication = clampScalar(b.Communication)
	b.Momentum = clampScalar(b.Momentum)
	b.RedFlags = math.Min(math.Abs(redFlags), models.RedFlagCap)

	return b
}

// clampScalar bounds a cumulative scalar adjustment to
// [-ScalarAdjustmentBound, ScalarAdjustmentBound].
func clampScalar(v float64) float64 {
	if v < -models.ScalarAdjustmentBound {
		return -models.ScalarAdjustmentBound
	}
	if v > models.ScalarAdjustmentBound {
		return models.ScalarAdjustmentBound
	}
	return v
}
