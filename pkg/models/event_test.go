package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampImpact(t *testing.T) {
	assert.Equal(t, 10.0, ClampImpact(15))
	assert.Equal(t, -10.0, ClampImpact(-22))
	assert.Equal(t, 7.5, ClampImpact(7.5))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.3))
	assert.Equal(t, 1.0, ClampConfidence(1.8))
	assert.Equal(t, 0.85, ClampConfidence(0.85))
}

func TestScoreCategory_Valid(t *testing.T) {
	for _, c := range AllScoreCategories {
		assert.True(t, c.Valid(), string(c))
	}
	assert.False(t, ScoreCategory("vibes").Valid())
	assert.False(t, ScoreCategory("").Valid())
}

func TestNewScoreEvent_Defaults(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	ev := NewScoreEvent(ScoreEventInput{
		SubjectID:  "deal-1",
		Category:   CategoryTeam,
		Signal:     "cto_hired",
		Impact:     15,
		Confidence: -0.3,
	}, now)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, now, ev.Timestamp)
	assert.Equal(t, SourceManual, ev.Source)
	assert.Equal(t, AnalyzedByAI, ev.AnalyzedBy)
	assert.Equal(t, 10.0, ev.Impact)
	assert.Equal(t, 0.0, ev.Confidence)
	assert.Equal(t, now, ev.CreatedAt)
}

func TestNewScoreEvent_UserAttribution(t *testing.T) {
	now := time.Now()

	ev := NewScoreEvent(ScoreEventInput{
		SubjectID:  "deal-1",
		Category:   CategoryDeal,
		Signal:     "manual_adjustment",
		Impact:     2,
		Confidence: 1,
		UserID:     "user-42",
	}, now)

	assert.Equal(t, AnalyzedByUser, ev.AnalyzedBy)
	assert.Equal(t, "user-42", ev.UserID)
}

func TestNewScoreEvent_ExplicitFieldsKept(t *testing.T) {
	now := time.Now()
	backdated := now.AddDate(0, 0, -14)

	ev := NewScoreEvent(ScoreEventInput{
		SubjectID:  "deal-1",
		Timestamp:  backdated,
		Source:     SourceEmail,
		Category:   CategoryCommunication,
		Signal:     "fast_reply",
		Impact:     1,
		Confidence: 0.9,
		AnalyzedBy: AnalyzedByAI,
		UserID:     "user-42",
	}, now)

	assert.Equal(t, backdated, ev.Timestamp)
	assert.Equal(t, SourceEmail, ev.Source)
	// Explicit authorship wins over the user-id heuristic.
	assert.Equal(t, AnalyzedByAI, ev.AnalyzedBy)
}

func TestWeightedImpact_ReclampsStoredValues(t *testing.T) {
	// Values read back from storage predating stricter validation are
	// clamped again at use time.
	ev := ScoreEvent{Impact: 40, Confidence: 3}
	assert.Equal(t, 10.0, ev.WeightedImpact(1.0))
	assert.Equal(t, 5.0, ev.WeightedImpact(0.5))
}
