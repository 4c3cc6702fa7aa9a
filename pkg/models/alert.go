// Package models contains domain models for dealscope.
package models

import "time"

// AlertType classifies a threshold-crossing alert.
type AlertType string

const (
	AlertMajorIncrease AlertType = "major_increase"
	AlertMajorDecrease AlertType = "major_decrease"
	AlertRedFlag       AlertType = "red_flag"
	AlertMilestone     AlertType = "milestone"
)

// AlertUrgency ranks how quickly an alert should be looked at.
type AlertUrgency string

const (
	UrgencyLow    AlertUrgency = "low"
	UrgencyMedium AlertUrgency = "medium"
	UrgencyHigh   AlertUrgency = "high"
)

// MajorDeltaThreshold is the absolute score change that qualifies as a
// major increase or decrease.
const MajorDeltaThreshold = 5

// MilestoneThresholds are the score levels whose crossing, in either
// direction, emits a milestone alert. A large jump can cross several at
// once; one alert is emitted per crossed threshold.
var MilestoneThresholds = []int{90, 80, 70, 50}

// DefaultRedFlagTriggers are the signal labels that emit a red-flag alert
// regardless of score delta. These are finer-grained than the ScoreCategory
// taxonomy and arrive via the event's signal field from richer sources; the
// list is configurable rather than hard-coded into the evaluator.
var DefaultRedFlagTriggers = []string{
	"metric_inconsistency",
	"team_departure",
	"runway_concern",
}

// Alert records a notable score transition. Alerts are created only as a
// side effect of a recalculation and are never mutated; all alerts from one
// recalculation share the same previous/new score pair.
type Alert struct {
	ID            int64        `json:"id"`
	SubjectID     string       `json:"subject_id"`
	Type          AlertType    `json:"type"`
	PreviousScore int          `json:"previous_score"`
	NewScore      int          `json:"new_score"`
	Trigger       string       `json:"trigger"`
	Urgency       AlertUrgency `json:"urgency"`
	CreatedAt     time.Time    `json:"created_at"`
}
