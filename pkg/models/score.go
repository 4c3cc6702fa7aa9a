// Package models contains domain models for dealscope.
package models

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
)

// Score bounds. The current score is always a rounded integer in
// [MinScore, MaxScore]; the scalar breakdown fields carry their own caps.
const (
	MinScore = 0.0
	MaxScore = 100.0

	// ScalarAdjustmentBound caps the communication and momentum totals.
	ScalarAdjustmentBound = 20.0

	// RedFlagCap caps the reported red-flag magnitude.
	RedFlagCap = 30.0
)

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// RoundedScore clamps and rounds a raw score to the stored integer form.
func RoundedScore(v float64) int {
	return int(math.Round(ClampScore(v)))
}

// CategoryScore is the per-category pair of a structural base (set once,
// e.g. by a deck scoring pass) and an adjustment recomputed from scratch on
// every aggregation pass.
type CategoryScore struct {
	Base        float64            `json:"base"`
	Adjusted    float64            `json:"adjusted"`
	Subcriteria map[string]float64 `json:"subcriteria,omitempty"`
}

// ScoreBreakdown is the category-level decomposition of a subject's score.
// Communication and momentum are cumulative scalar totals rather than
// base/adjusted pairs; RedFlags is a non-negative magnitude.
type ScoreBreakdown struct {
	Team          CategoryScore `json:"team"`
	Market        CategoryScore `json:"market"`
	Product       CategoryScore `json:"product"`
	Traction      CategoryScore `json:"traction"`
	Deal          CategoryScore `json:"deal"`
	Communication float64       `json:"communication"`
	Momentum      float64       `json:"momentum"`
	RedFlags      float64       `json:"red_flags"`
}

// BaseSum returns the sum of the five category bases, the default score
// anchor when no explicit base score is stored.
func (b *ScoreBreakdown) BaseSum() float64 {
	return b.Team.Base + b.Market.Base + b.Product.Base + b.Traction.Base + b.Deal.Base
}

// Adjustments returns the signed total the breakdown contributes on top of
// the base score: category adjustments plus the scalar totals minus the
// red-flag magnitude.
func (b *ScoreBreakdown) Adjustments() float64 {
	return b.Team.Adjusted + b.Market.Adjusted + b.Product.Adjusted +
		b.Traction.Adjusted + b.Deal.Adjusted +
		b.Communication + b.Momentum - math.Abs(b.RedFlags)
}

// Scan implements sql.Scanner so a breakdown can live in a text column.
func (b *ScoreBreakdown) Scan(src interface{}) error {
	if src == nil {
		*b = ScoreBreakdown{}
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("ScoreBreakdown: unsupported type %T", src)
	}

	if len(data) == 0 {
		*b = ScoreBreakdown{}
		return nil
	}

	return json.Unmarshal(data, b)
}

// Value implements driver.Valuer for ScoreBreakdown.
func (b ScoreBreakdown) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// ScoreTrend is the three-way label derived from recent events.
type ScoreTrend string

const (
	TrendUp     ScoreTrend = "up"
	TrendDown   ScoreTrend = "down"
	TrendStable ScoreTrend = "stable"
)

// SubjectScore is a subject's cached score state. Everything except the
// category bases and the optional anchor is rederivable from the event log.
type SubjectScore struct {
	SubjectID      string          `json:"subject_id"`
	Name           string          `json:"name,omitempty"`
	BaseScore      sql.NullFloat64 `json:"-"`
	CurrentScore   int             `json:"current_score"`
	Breakdown      ScoreBreakdown  `json:"breakdown"`
	Trend          ScoreTrend      `json:"trend"`
	TrendDelta     float64         `json:"trend_delta"`
	ScoreUpdatedAt sql.NullInt64   `json:"-"`
}

// Anchor returns the stored base anchor if present, else the sum of the
// category bases.
func (s *SubjectScore) Anchor() float64 {
	if s.BaseScore.Valid {
		return s.BaseScore.Float64
	}
	return s.Breakdown.BaseSum()
}

// HasScore reports whether a score has ever been persisted for the subject.
// Alerts are only evaluated against a previously stored score.
func (s *SubjectScore) HasScore() bool {
	return s.ScoreUpdatedAt.Valid
}

// subjectScoreJSON flattens the sql.Null* fields for clean JSON output.
type subjectScoreJSON struct {
	SubjectID      string         `json:"subject_id"`
	Name           string         `json:"name,omitempty"`
	BaseScore      *float64       `json:"base_score,omitempty"`
	CurrentScore   int            `json:"current_score"`
	Breakdown      ScoreBreakdown `json:"breakdown"`
	Trend          ScoreTrend     `json:"trend"`
	TrendDelta     float64        `json:"trend_delta"`
	ScoreUpdatedAt int64          `json:"score_updated_at_epoch,omitempty"`
}

// MarshalJSON implements json.Marshaler for SubjectScore.
func (s *SubjectScore) MarshalJSON() ([]byte, error) {
	j := subjectScoreJSON{
		SubjectID:    s.SubjectID,
		Name:         s.Name,
		CurrentScore: s.CurrentScore,
		Breakdown:    s.Breakdown,
		Trend:        s.Trend,
		TrendDelta:   s.TrendDelta,
	}
	if s.BaseScore.Valid {
		v := s.BaseScore.Float64
		j.BaseScore = &v
	}
	if s.ScoreUpdatedAt.Valid {
		j.ScoreUpdatedAt = s.ScoreUpdatedAt.Int64
	}
	return json.Marshal(j)
}

// HistoryPoint is one reconstructed day in a subject's score series.
type HistoryPoint struct {
	Date   string `json:"date"` // UTC calendar day, YYYY-MM-DD
	Score  int    `json:"score"`
	Events int    `json:"events"`
}
