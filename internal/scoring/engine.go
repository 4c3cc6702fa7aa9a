package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/calibervc/dealscope/internal/db/gorm"
	"github.com/calibervc/dealscope/pkg/models"
)

// EventStore is the append-only event log the engine reads and writes.
type EventStore interface {
	// AppendEvents persists a batch of events. Events are never mutated or
	// deleted afterwards.
	AppendEvents(ctx context.Context, events []*models.ScoreEvent) error
	// ListBySubject returns every event for a subject ordered by timestamp
	// ascending.
	ListBySubject(ctx context.Context, subjectID string) ([]*models.ScoreEvent, error)
	// ListPage returns a most-recent-first page of a subject's events plus
	// the total count matching the query.
	ListPage(ctx context.Context, subjectID string, q models.EventQuery) ([]*models.ScoreEvent, int64, error)
}

// SubjectStore holds the cached per-subject score state.
type SubjectStore interface {
	// Get returns a subject's score state, or models.ErrSubjectNotFound.
	Get(ctx context.Context, subjectID string) (*models.SubjectScore, error)
	// Save upserts a subject's score state. Last writer wins; the state is
	// always recomputable from the event log.
	Save(ctx context.Context, state *models.SubjectScore) error
}

// AlertStore persists score alerts.
type AlertStore interface {
	// AppendAlerts persists all alerts from one recalculation as a single
	// batch.
	AppendAlerts(ctx context.Context, alerts []*models.Alert) error
	// ListBySubject returns a subject's alerts, most recent first.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*models.Alert, error)
}

// ScoreResult is the outcome of one recalculation.
type ScoreResult struct {
	CurrentScore int                   `json:"current_score"`
	Breakdown    models.ScoreBreakdown `json:"breakdown"`
	Trend        models.ScoreTrend     `json:"trend"`
	TrendDelta   float64               `json:"trend_delta"`
	Alerts       []*models.Alert       `json:"alerts,omitempty"`
}

// Engine converts a subject's event log into its score state. It holds no
// state of its own beyond injected dependencies: every recalculation is a
// pure fold over the log plus the stored base anchor, so concurrent
// recalculations for the same subject safely converge on last-writer-wins.
type Engine struct {
	log             zerolog.Logger
	events          EventStore
	subjects        SubjectStore
	alerts          AlertStore
	redFlagTriggers map[string]struct{}
	now             func() time.Time
}

// NewEngine creates a scoring engine with its storage dependencies injected.
// triggerLabels configures the red-flag alert allow-list; nil uses
// models.DefaultRedFlagTriggers.
func NewEngine(events EventStore, subjects SubjectStore, alerts AlertStore, triggerLabels []string, log zerolog.Logger) *Engine {
	if triggerLabels == nil {
		triggerLabels = models.DefaultRedFlagTriggers
	}
	triggers := make(map[string]struct{}, len(triggerLabels))
	for _, l := range triggerLabels {
		triggers[l] = struct{}{}
	}
	return &Engine{
		log:             log.With().Str("component", "scoring").Logger(),
		events:          events,
		subjects:        subjects,
		alerts:          alerts,
		redFlagTriggers: triggers,
		now:             time.Now,
	}
}

// AppendEvent accepts one event and synchronously recalculates the subject's
// score before returning. Out-of-range impact/confidence values are clamped,
// not rejected.
func (e *Engine) AppendEvent(ctx context.Context, in models.ScoreEventInput) (*models.ScoreEvent, error) {
	subject, err := e.subjects.Get(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	ev := models.NewScoreEvent(in, e.now())
	if err := e.events.AppendEvents(ctx, []*models.ScoreEvent{ev}); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	if _, err := e.recalculate(ctx, subject, []*models.ScoreEvent{ev}); err != nil {
		return nil, err
	}
	return ev, nil
}

// AppendEvents accepts a batch of events spanning any number of subjects.
// Each subject's events are appended together and trigger exactly one
// recalculation, so a deck analysis producing many events does not recompute
// once per event. Subjects are processed independently: a failure on one
// does not stop the others, and the first error is returned after all
// subjects have been attempted.
func (e *Engine) AppendEvents(ctx context.Context, inputs []models.ScoreEventInput) error {
	if len(inputs) == 0 {
		return nil
	}

	now := e.now()
	grouped := make(map[string][]*models.ScoreEvent)
	order := make([]string, 0, len(inputs))
	for _, in := range inputs {
		if _, seen := grouped[in.SubjectID]; !seen {
			order = append(order, in.SubjectID)
		}
		grouped[in.SubjectID] = append(grouped[in.SubjectID], models.NewScoreEvent(in, now))
	}

	var g errgroup.Group
	for _, subjectID := range order {
		subjectID := subjectID
		batch := grouped[subjectID]
		g.Go(func() error {
			if err := e.appendSubjectBatch(ctx, subjectID, batch); err != nil {
				e.log.Error().Err(err).
					Str("subject", subjectID).
					Int("events", len(batch)).
					Msg("batch append failed for subject")
				return fmt.Errorf("subject %s: %w", subjectID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// appendSubjectBatch appends one subject's events and recalculates once.
func (e *Engine) appendSubjectBatch(ctx context.Context, subjectID string, batch []*models.ScoreEvent) error {
	subject, err := e.subjects.Get(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := e.events.AppendEvents(ctx, batch); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	_, err = e.recalculate(ctx, subject, batch)
	return err
}

// SetBaseScore seeds a subject's category bases, typically once after a deck
// scoring pass, and initializes the current score to the base sum. The
// subject is created if it does not exist yet. Seeding does not evaluate
// alerts; it establishes the baseline later recalculations alert against.
func (e *Engine) SetBaseScore(ctx context.Context, subjectID string, breakdown models.ScoreBreakdown) error {
	subject, err := e.subjects.Get(ctx, subjectID)
	if err == models.ErrSubjectNotFound {
		subject = &models.SubjectScore{SubjectID: subjectID}
	} else if err != nil {
		return err
	}

	// Bases persist across recalculations; adjustments are recomputed from
	// the log, so they are zeroed here rather than carried over.
	breakdown.Team.Adjusted = 0
	breakdown.Market.Adjusted = 0
	breakdown.Product.Adjusted = 0
	breakdown.Traction.Adjusted = 0
	breakdown.Deal.Adjusted = 0
	breakdown.Communication = 0
	breakdown.Momentum = 0
	breakdown.RedFlags = 0

	subject.Breakdown = breakdown
	subject.CurrentScore = models.RoundedScore(subject.Anchor())
	subject.Trend = models.TrendStable
	subject.TrendDelta = 0
	subject.ScoreUpdatedAt.Int64 = e.now().UnixMilli()
	subject.ScoreUpdatedAt.Valid = true

	if err := e.subjects.Save(ctx, subject); err != nil {
		return fmt.Errorf("save base score: %w", err)
	}

	e.log.Info().
		Str("subject", subjectID).
		Int("score", subject.CurrentScore).
		Msg("base score seeded")
	return nil
}

// Recalculate replays the subject's full event log into a fresh score,
// persists it, and returns the result. Useful as a repair path when a write
// race left the cache stale.
func (e *Engine) Recalculate(ctx context.Context, subjectID string) (*ScoreResult, error) {
	subject, err := e.subjects.Get(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return e.recalculate(ctx, subject, nil)
}

// GetScore returns the subject's cached score state.
func (e *Engine) GetScore(ctx context.Context, subjectID string) (*models.SubjectScore, error) {
	return e.subjects.Get(ctx, subjectID)
}

// GetEvents returns a most-recent-first page of a subject's events and the
// total count matching the query.
func (e *Engine) GetEvents(ctx context.Context, subjectID string, q models.EventQuery) ([]*models.ScoreEvent, int64, error) {
	if _, err := e.subjects.Get(ctx, subjectID); err != nil {
		return nil, 0, err
	}
	return e.events.ListPage(ctx, subjectID, q)
}

// GetAlerts returns a subject's recent alerts, most recent first.
func (e *Engine) GetAlerts(ctx context.Context, subjectID string, limit int) ([]*models.Alert, error) {
	if _, err := e.subjects.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	return e.alerts.ListBySubject(ctx, subjectID, limit)
}

// Ensure the GORM stores satisfy the engine interfaces
var (
	_ EventStore   = (*gorm.EventStore)(nil)
	_ SubjectStore = (*gorm.SubjectStore)(nil)
	_ AlertStore   = (*gorm.AlertStore)(nil)
)
