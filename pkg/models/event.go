// Package models contains domain models for dealscope.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSubjectNotFound is returned when a score operation references a subject
// that has no stored record.
var ErrSubjectNotFound = errors.New("subject not found")

// ScoreSource identifies where a score event originated.
type ScoreSource string

const (
	SourceDeck     ScoreSource = "deck"
	SourceEmail    ScoreSource = "email"
	SourceMeeting  ScoreSource = "meeting"
	SourceResearch ScoreSource = "research"
	SourceManual   ScoreSource = "manual"
	SourceSystem   ScoreSource = "system"
)

// ScoreCategory classifies which part of the breakdown an event adjusts.
type ScoreCategory string

const (
	CategoryTeam          ScoreCategory = "team"
	CategoryMarket        ScoreCategory = "market"
	CategoryProduct       ScoreCategory = "product"
	CategoryTraction      ScoreCategory = "traction"
	CategoryDeal          ScoreCategory = "deal"
	CategoryCommunication ScoreCategory = "communication"
	CategoryMomentum      ScoreCategory = "momentum"
	CategoryRedFlag       ScoreCategory = "red_flag"
)

// AllScoreCategories lists every valid category.
var AllScoreCategories = []ScoreCategory{
	CategoryTeam,
	CategoryMarket,
	CategoryProduct,
	CategoryTraction,
	CategoryDeal,
	CategoryCommunication,
	CategoryMomentum,
	CategoryRedFlag,
}

// Valid reports whether c is a known category.
func (c ScoreCategory) Valid() bool {
	for _, k := range AllScoreCategories {
		if c == k {
			return true
		}
	}
	return false
}

// AnalyzedBy identifies whether a human or the AI pipeline produced an event.
type AnalyzedBy string

const (
	AnalyzedByAI   AnalyzedBy = "ai"
	AnalyzedByUser AnalyzedBy = "user"
)

// Impact and confidence are clamped to these ranges at every point of use,
// including values read back from storage that predates stricter validation.
const (
	MinImpact     = -10.0
	MaxImpact     = 10.0
	MinConfidence = 0.0
	MaxConfidence = 1.0
)

// ClampImpact bounds a raw impact to [MinImpact, MaxImpact].
func ClampImpact(v float64) float64 {
	if v < MinImpact {
		return MinImpact
	}
	if v > MaxImpact {
		return MaxImpact
	}
	return v
}

// ClampConfidence bounds a raw confidence to [MinConfidence, MaxConfidence].
func ClampConfidence(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}

// ScoreEvent is an immutable observation about a subject. Events are
// append-only: the full per-subject log is the sole source of truth for the
// score, and the stored current score is a derived cache.
type ScoreEvent struct {
	ID         string        `json:"id"`
	SubjectID  string        `json:"subject_id"`
	Timestamp  time.Time     `json:"timestamp"`
	Source     ScoreSource   `json:"source"`
	SourceID   string        `json:"source_id,omitempty"`
	Category   ScoreCategory `json:"category"`
	Signal     string        `json:"signal"`
	Impact     float64       `json:"impact"`
	Confidence float64       `json:"confidence"`
	Evidence   string        `json:"evidence,omitempty"`
	AnalyzedBy AnalyzedBy    `json:"analyzed_by"`
	UserID     string        `json:"user_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// WeightedImpact returns the event's contribution at the given decay weight,
// re-clamping impact and confidence defensively.
func (e *ScoreEvent) WeightedImpact(decay float64) float64 {
	return ClampImpact(e.Impact) * ClampConfidence(e.Confidence) * decay
}

// ScoreEventInput is the accept-boundary shape for a new event. Out-of-range
// impact/confidence values are clamped rather than rejected so a slightly
// miscalibrated AI extraction never blocks an update.
type ScoreEventInput struct {
	SubjectID  string        `json:"subject_id"`
	Timestamp  time.Time     `json:"timestamp,omitzero"`
	Source     ScoreSource   `json:"source"`
	SourceID   string        `json:"source_id,omitempty"`
	Category   ScoreCategory `json:"category"`
	Signal     string        `json:"signal"`
	Impact     float64       `json:"impact"`
	Confidence float64       `json:"confidence"`
	Evidence   string        `json:"evidence,omitempty"`
	AnalyzedBy AnalyzedBy    `json:"analyzed_by,omitempty"`
	UserID     string        `json:"user_id,omitempty"`
}

// NewScoreEvent builds a ScoreEvent from accepted input: assigns an ID,
// clamps impact/confidence, and fills defaults for timestamp, source, and
// authorship.
func NewScoreEvent(in ScoreEventInput, now time.Time) *ScoreEvent {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	source := in.Source
	if source == "" {
		source = SourceManual
	}
	analyzedBy := in.AnalyzedBy
	if analyzedBy == "" {
		if in.UserID != "" {
			analyzedBy = AnalyzedByUser
		} else {
			analyzedBy = AnalyzedByAI
		}
	}
	return &ScoreEvent{
		ID:         uuid.NewString(),
		SubjectID:  in.SubjectID,
		Timestamp:  ts,
		Source:     source,
		SourceID:   in.SourceID,
		Category:   in.Category,
		Signal:     in.Signal,
		Impact:     ClampImpact(in.Impact),
		Confidence: ClampConfidence(in.Confidence),
		Evidence:   in.Evidence,
		AnalyzedBy: analyzedBy,
		UserID:     in.UserID,
		CreatedAt:  now,
	}
}

// EventQuery filters a paginated event listing.
type EventQuery struct {
	Category ScoreCategory // empty means all categories
	Limit    int
	Offset   int
}
