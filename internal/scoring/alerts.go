package scoring

import (
	"fmt"
	"time"

	"github.com/calibervc/dealscope/pkg/models"
)

// evaluateAlerts compares the previous and new score plus the triggering
// events against each alert rule. The rules are independent: one
// recalculation can emit several alerts, and all of them share the same
// previous/new score pair.
func (e *Engine) evaluateAlerts(subjectID string, previous, current int, triggers []*models.ScoreEvent, now time.Time) []*models.Alert {
	var alerts []*models.Alert

	add := func(t models.AlertType, reason string, urgency models.AlertUrgency) {
		alerts = append(alerts, &models.Alert{
			SubjectID:     subjectID,
			Type:          t,
			PreviousScore: previous,
			NewScore:      current,
			Trigger:       reason,
			Urgency:       urgency,
			CreatedAt:     now,
		})
	}

	delta := current - previous
	if delta >= models.MajorDeltaThreshold {
		add(models.AlertMajorIncrease,
			fmt.Sprintf("score increased by %d points", delta),
			models.UrgencyMedium)
	}
	if delta <= -models.MajorDeltaThreshold {
		add(models.AlertMajorDecrease,
			fmt.Sprintf("score decreased by %d points", -delta),
			models.UrgencyHigh)
	}

	// The red-flag rule matches each triggering event's signal against the
	// configured allow-list of fine-grained labels, and additionally fires
	// for any event filed under the red_flag category so coarse producers
	// still surface. It ignores the score delta entirely, and a batch can
	// carry a flagged event anywhere in it, one alert per match.
	for _, trigger := range triggers {
		if e.isRedFlagTrigger(trigger) {
			add(models.AlertRedFlag, trigger.Signal, models.UrgencyHigh)
		}
	}

	// A rare large jump can cross several milestones at once; every crossed
	// threshold gets its own alert.
	for _, threshold := range models.MilestoneThresholds {
		switch {
		case previous < threshold && current >= threshold:
			add(models.AlertMilestone,
				fmt.Sprintf("score rose past %d", threshold),
				models.UrgencyMedium)
		case previous >= threshold && current < threshold:
			add(models.AlertMilestone,
				fmt.Sprintf("score fell below %d", threshold),
				models.UrgencyHigh)
		}
	}

	return alerts
}

// isRedFlagTrigger reports whether an event should emit a red-flag alert.
func (e *Engine) isRedFlagTrigger(ev *models.ScoreEvent) bool {
	if ev.Category == models.CategoryRedFlag {
		return true
	}
	_, ok := e.redFlagTriggers[ev.Signal]
	return ok
}
