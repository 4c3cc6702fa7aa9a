// Package gorm provides GORM-based database operations for dealscope.
package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/calibervc/dealscope/pkg/models"
)

// GORM Models

// Note: the breakdown column type (models.ScoreBreakdown) is imported from
// pkg/models and already implements sql.Scanner and driver.Valuer.

// Subject represents a tracked deal subject and its cached score state.
// Field order optimized for memory alignment (fieldalignment).
type Subject struct {
	SubjectID      string                `gorm:"uniqueIndex;not null"`
	Trend          string                `gorm:"type:text;check:trend IN ('up', 'down', 'stable');default:'stable'"`
	CreatedAt      string                `gorm:"not null"`
	Breakdown      models.ScoreBreakdown `gorm:"type:text"`
	Name           sql.NullString        `gorm:"type:text"`
	BaseScore      sql.NullFloat64       `gorm:"type:real"`
	ScoreUpdatedAt sql.NullInt64         `gorm:"column:score_updated_at_epoch"`
	ID             int64                 `gorm:"primaryKey;autoIncrement"`
	CurrentScore   int                   `gorm:"default:0"`
	TrendDelta     float64               `gorm:"type:real;default:0"`
	CreatedAtEpoch int64                 `gorm:"index:idx_subjects_created,sort:desc;not null"`
}

func (Subject) TableName() string { return "subjects" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Subject) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Now().Format(time.RFC3339)
	}
	if s.Trend == "" {
		s.Trend = string(models.TrendStable)
	}
	return nil
}

// ScoreEvent represents one append-only score observation.
type ScoreEvent struct {
	EventID        string         `gorm:"uniqueIndex;not null"`
	SubjectID      string         `gorm:"index:idx_events_subject_ts,priority:1;not null"`
	Source         string         `gorm:"type:text;not null"`
	Category       string         `gorm:"type:text;index:idx_events_category;not null"`
	Signal         string         `gorm:"type:text;not null"`
	AnalyzedBy     string         `gorm:"type:text;check:analyzed_by IN ('ai', 'user');default:'ai'"`
	CreatedAt      string         `gorm:"not null"`
	SourceID       sql.NullString `gorm:"type:text"`
	Evidence       sql.NullString `gorm:"type:text"`
	UserID         sql.NullString `gorm:"type:text"`
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	Impact         float64        `gorm:"type:real;not null"`
	Confidence     float64        `gorm:"type:real;not null"`
	TimestampEpoch int64          `gorm:"index:idx_events_subject_ts,priority:2;not null"`
	CreatedAtEpoch int64          `gorm:"not null"`
}

func (ScoreEvent) TableName() string { return "score_events" }

// BeforeCreate hook to ensure timestamps are set.
func (e *ScoreEvent) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if e.TimestampEpoch == 0 {
		e.TimestampEpoch = now.UnixMilli()
	}
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = now.UnixMilli()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// Alert represents a notable score transition.
type Alert struct {
	SubjectID      string `gorm:"index:idx_alerts_subject_created,priority:1;not null"`
	Type           string `gorm:"type:text;check:type IN ('major_increase', 'major_decrease', 'red_flag', 'milestone');not null"`
	Trigger        string `gorm:"type:text;not null"`
	Urgency        string `gorm:"type:text;check:urgency IN ('low', 'medium', 'high');not null"`
	CreatedAt      string `gorm:"not null"`
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	PreviousScore  int    `gorm:"not null"`
	NewScore       int    `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_alerts_subject_created,priority:2,sort:desc;not null"`
}

func (Alert) TableName() string { return "alerts" }

// BeforeCreate hook to ensure timestamps are set.
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedAtEpoch == 0 {
		a.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Conversions between GORM rows and domain models.

func subjectToDomain(row *Subject) *models.SubjectScore {
	return &models.SubjectScore{
		SubjectID:      row.SubjectID,
		Name:           row.Name.String,
		BaseScore:      row.BaseScore,
		CurrentScore:   row.CurrentScore,
		Breakdown:      row.Breakdown,
		Trend:          models.ScoreTrend(row.Trend),
		TrendDelta:     row.TrendDelta,
		ScoreUpdatedAt: row.ScoreUpdatedAt,
	}
}

func subjectFromDomain(state *models.SubjectScore) *Subject {
	return &Subject{
		SubjectID:      state.SubjectID,
		Name:           sqlNullString(state.Name),
		BaseScore:      state.BaseScore,
		CurrentScore:   state.CurrentScore,
		Breakdown:      state.Breakdown,
		Trend:          string(state.Trend),
		TrendDelta:     state.TrendDelta,
		ScoreUpdatedAt: state.ScoreUpdatedAt,
	}
}

func eventToDomain(row *ScoreEvent) *models.ScoreEvent {
	return &models.ScoreEvent{
		ID:         row.EventID,
		SubjectID:  row.SubjectID,
		Timestamp:  time.UnixMilli(row.TimestampEpoch).UTC(),
		Source:     models.ScoreSource(row.Source),
		SourceID:   row.SourceID.String,
		Category:   models.ScoreCategory(row.Category),
		Signal:     row.Signal,
		Impact:     row.Impact,
		Confidence: row.Confidence,
		Evidence:   row.Evidence.String,
		AnalyzedBy: models.AnalyzedBy(row.AnalyzedBy),
		UserID:     row.UserID.String,
		CreatedAt:  time.UnixMilli(row.CreatedAtEpoch).UTC(),
	}
}

func eventFromDomain(ev *models.ScoreEvent) *ScoreEvent {
	return &ScoreEvent{
		EventID:        ev.ID,
		SubjectID:      ev.SubjectID,
		TimestampEpoch: ev.Timestamp.UnixMilli(),
		Source:         string(ev.Source),
		SourceID:       sqlNullString(ev.SourceID),
		Category:       string(ev.Category),
		Signal:         ev.Signal,
		Impact:         ev.Impact,
		Confidence:     ev.Confidence,
		Evidence:       sqlNullString(ev.Evidence),
		AnalyzedBy:     string(ev.AnalyzedBy),
		UserID:         sqlNullString(ev.UserID),
		CreatedAtEpoch: ev.CreatedAt.UnixMilli(),
		CreatedAt:      ev.CreatedAt.Format(time.RFC3339),
	}
}

func alertToDomain(row *Alert) *models.Alert {
	return &models.Alert{
		ID:            row.ID,
		SubjectID:     row.SubjectID,
		Type:          models.AlertType(row.Type),
		PreviousScore: row.PreviousScore,
		NewScore:      row.NewScore,
		Trigger:       row.Trigger,
		Urgency:       models.AlertUrgency(row.Urgency),
		CreatedAt:     time.UnixMilli(row.CreatedAtEpoch).UTC(),
	}
}

func alertFromDomain(a *models.Alert) *Alert {
	return &Alert{
		SubjectID:      a.SubjectID,
		Type:           string(a.Type),
		PreviousScore:  a.PreviousScore,
		NewScore:       a.NewScore,
		Trigger:        a.Trigger,
		Urgency:        string(a.Urgency),
		CreatedAtEpoch: a.CreatedAt.UnixMilli(),
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}
