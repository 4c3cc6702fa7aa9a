package scoring

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calibervc/dealscope/pkg/models"
)

// memStores is an in-memory implementation of the engine's store interfaces.
type memStores struct {
	mu       sync.Mutex
	events   map[string][]*models.ScoreEvent
	subjects map[string]*models.SubjectScore
	alerts   map[string][]*models.Alert
	nextID   int64
}

func newMemStores() *memStores {
	return &memStores{
		events:   make(map[string][]*models.ScoreEvent),
		subjects: make(map[string]*models.SubjectScore),
		alerts:   make(map[string][]*models.Alert),
	}
}

func (m *memStores) AppendEvents(_ context.Context, events []*models.ScoreEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.events[ev.SubjectID] = append(m.events[ev.SubjectID], ev)
	}
	return nil
}

func (m *memStores) ListBySubject(_ context.Context, subjectID string) ([]*models.ScoreEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := append([]*models.ScoreEvent(nil), m.events[subjectID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

func (m *memStores) ListPage(ctx context.Context, subjectID string, q models.EventQuery) ([]*models.ScoreEvent, int64, error) {
	all, _ := m.ListBySubject(ctx, subjectID)
	var filtered []*models.ScoreEvent
	for _, ev := range all {
		if q.Category == "" || ev.Category == q.Category {
			filtered = append(filtered, ev)
		}
	}
	// Reverse to most-recent-first.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	total := int64(len(filtered))
	if q.Offset > 0 {
		if q.Offset >= len(filtered) {
			return nil, total, nil
		}
		filtered = filtered[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(filtered) {
		filtered = filtered[:q.Limit]
	}
	return filtered, total, nil
}

func (m *memStores) Get(_ context.Context, subjectID string) (*models.SubjectScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.subjects[subjectID]
	if !ok {
		return nil, models.ErrSubjectNotFound
	}
	clone := *state
	return &clone, nil
}

func (m *memStores) Save(_ context.Context, state *models.SubjectScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *state
	m.subjects[state.SubjectID] = &clone
	return nil
}

func (m *memStores) AppendAlerts(_ context.Context, alerts []*models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range alerts {
		m.nextID++
		a.ID = m.nextID
		m.alerts[a.SubjectID] = append(m.alerts[a.SubjectID], a)
	}
	return nil
}

func (m *memStores) ListBySubjectAlerts(subjectID string) []*models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Alert(nil), m.alerts[subjectID]...)
}

// alertStoreAdapter disambiguates the alert ListBySubject from the event one.
type alertStoreAdapter struct {
	*memStores
}

func (a alertStoreAdapter) ListBySubject(_ context.Context, subjectID string, limit int) ([]*models.Alert, error) {
	alerts := a.ListBySubjectAlerts(subjectID)
	// Most recent first.
	for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
		alerts[i], alerts[j] = alerts[j], alerts[i]
	}
	if limit > 0 && limit < len(alerts) {
		alerts = alerts[:limit]
	}
	return alerts, nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *memStores) {
	t.Helper()
	m := newMemStores()
	e := NewEngine(m, m, alertStoreAdapter{m}, nil, zerolog.Nop())
	e.now = func() time.Time { return testNow }
	return e, m
}

// seedSubject stores a subject whose score has already been calculated, so
// later recalculations evaluate alerts against it.
func seedSubject(t *testing.T, m *memStores, subjectID string, bases [5]float64) {
	t.Helper()
	breakdown := models.ScoreBreakdown{
		Team:     models.CategoryScore{Base: bases[0]},
		Market:   models.CategoryScore{Base: bases[1]},
		Product:  models.CategoryScore{Base: bases[2]},
		Traction: models.CategoryScore{Base: bases[3]},
		Deal:     models.CategoryScore{Base: bases[4]},
	}
	state := &models.SubjectScore{
		SubjectID:    subjectID,
		Breakdown:    breakdown,
		CurrentScore: models.RoundedScore(breakdown.BaseSum()),
	}
	state.ScoreUpdatedAt.Int64 = testNow.Add(-time.Hour).UnixMilli()
	state.ScoreUpdatedAt.Valid = true
	require.NoError(t, m.Save(context.Background(), state))
}

func TestEngine_NoEventsScoreEqualsBaseSum(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{15, 12, 11, 12, 10}) // sum 60

	result, err := e.Recalculate(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 60, result.CurrentScore)
	assert.Equal(t, models.TrendStable, result.Trend)
	assert.Empty(t, result.Alerts)
}

func TestEngine_SingleFreshEvent(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10}) // sum 50

	ev, err := e.AppendEvent(ctx, models.ScoreEventInput{
		SubjectID:  "deal-1",
		Category:   models.CategoryTraction,
		Signal:     "pilot_signed",
		Impact:     10,
		Confidence: 1.0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 60, state.CurrentScore)
	assert.InDelta(t, 10.0, state.Breakdown.Traction.Adjusted, 1e-9)
}

func TestEngine_OldEventDecays(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10})

	_, err := e.AppendEvent(ctx, models.ScoreEventInput{
		SubjectID:  "deal-1",
		Timestamp:  testNow.AddDate(0, 0, -100),
		Category:   models.CategoryTraction,
		Signal:     "old_pilot",
		Impact:     10,
		Confidence: 1.0,
	})
	require.NoError(t, err)

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	// 100-day-old event contributes at half weight.
	assert.Equal(t, 55, state.CurrentScore)
}

func TestEngine_ImpactClampedNotRejected(t *testing.T) {
	ctx := context.Background()

	score := func(impact, confidence float64) int {
		e, m := newTestEngine(t)
		seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10})
		_, err := e.AppendEvent(ctx, models.ScoreEventInput{
			SubjectID:  "deal-1",
			Category:   models.CategoryTeam,
			Signal:     "signal",
			Impact:     impact,
			Confidence: confidence,
		})
		require.NoError(t, err)
		state, err := e.GetScore(ctx, "deal-1")
		require.NoError(t, err)
		return state.CurrentScore
	}

	// Impact above the cap behaves exactly like the cap.
	assert.Equal(t, score(10, 1.0), score(15, 1.0))
	// Negative confidence clamps to zero, contributing nothing.
	assert.Equal(t, score(0, 1.0), score(10, -0.3))
}

func TestEngine_RedFlagSubtractsMagnitude(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10})

	_, err := e.AppendEvent(ctx, models.ScoreEventInput{
		SubjectID:  "deal-1",
		Category:   models.CategoryRedFlag,
		Signal:     "metric_inconsistency",
		Impact:     -8,
		Confidence: 1.0,
	})
	require.NoError(t, err)

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 42, state.CurrentScore)
	assert.InDelta(t, 8.0, state.Breakdown.RedFlags, 1e-9)
}

func TestEngine_RedFlagCap(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{16, 16, 16, 16, 16}) // sum 80

	var inputs []models.ScoreEventInput
	for i := 0; i < 6; i++ {
		inputs = append(inputs, models.ScoreEventInput{
			SubjectID:  "deal-1",
			Category:   models.CategoryRedFlag,
			Signal:     "runway_concern",
			Impact:     -10,
			Confidence: 1.0,
		})
	}
	require.NoError(t, e.AppendEvents(ctx, inputs))

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	// Six -10 flags sum to 60 but the reported magnitude caps at 30.
	assert.InDelta(t, 30.0, state.Breakdown.RedFlags, 1e-9)
	assert.Equal(t, 50, state.CurrentScore)
}

func TestEngine_ScalarAdjustmentBounds(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10})

	var inputs []models.ScoreEventInput
	for i := 0; i < 5; i++ {
		inputs = append(inputs, models.ScoreEventInput{
			SubjectID:  "deal-1",
			Category:   models.CategoryMomentum,
			Signal:     "rapid_followup",
			Impact:     10,
			Confidence: 1.0,
		})
	}
	require.NoError(t, e.AppendEvents(ctx, inputs))

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, state.Breakdown.Momentum, 1e-9)
	assert.Equal(t, 70, state.CurrentScore)
}

func TestEngine_ScoreStaysInBounds(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{19, 19, 19, 19, 19}) // sum 95

	var inputs []models.ScoreEventInput
	for i := 0; i < 4; i++ {
		inputs = append(inputs, models.ScoreEventInput{
			SubjectID:  "deal-1",
			Category:   models.CategoryTraction,
			Signal:     "growth",
			Impact:     10,
			Confidence: 1.0,
		})
	}
	require.NoError(t, e.AppendEvents(ctx, inputs))

	state, err := e.GetScore(ctx, "deal-1")
	require.NoError(t, err)
	assert.Equal(t, 100, state.CurrentScore)
}

func TestEngine_RecalculateIsIdempotent(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-1", [5]float64{10, 10, 10, 10, 10})

	_, err := e.AppendEvent(ctx, models.ScoreEventInput{
		SubjectID:  "deal-1",
		Category:   models.CategoryMarket,
		Signal:     "competitor_exit",
		Impact:     5,
		Confidence: 0.8,
	})
	require.NoError(t, err)

	first, err := e.Recalculate(ctx, "deal-1")
	require.NoError(t, err)
	second, err := e.Recalculate(ctx, "deal-1")
	require.NoError(t, err)

	assert.Equal(t, first.CurrentScore, second.CurrentScore)
	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, first.TrendDelta, second.TrendDelta)
}

func TestEngine_UnknownSubject(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AppendEvent(ctx, models.ScoreEventInput{
		SubjectID:  "missing",
		Category:   models.CategoryTeam,
		Signal:     "hire",
		Impact:     3,
		Confidence: 1.0,
	})
	assert.ErrorIs(t, err, models.ErrSubjectNotFound)

	_, err = e.Recalculate(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrSubjectNotFound)
}

func TestEngine_SetBaseScoreCreatesSubject(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	breakdown := models.ScoreBreakdown{
		Team:     models.CategoryScore{Base: 15},
		Market:   models.CategoryScore{Base: 12},
		Product:  models.CategoryScore{Base: 11},
		Traction: models.CategoryScore{Base: 12},
		Deal:     models.CategoryScore{Base: 10},
	}
	require.NoError(t, e.SetBaseScore(ctx, "deal-new", breakdown))

	state, err := e.GetScore(ctx, "deal-new")
	require.NoError(t, err)
	assert.Equal(t, 60, state.CurrentScore)
	assert.Equal(t, models.TrendStable, state.Trend)
	assert.True(t, state.HasScore())
}

func TestEngine_BatchRecalculatesOncePerSubject(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-a", [5]float64{10, 10, 10, 10, 10})
	seedSubject(t, m, "deal-b", [5]float64{12, 12, 12, 12, 12})

	inputs := []models.ScoreEventInput{
		{SubjectID: "deal-a", Category: models.CategoryTeam, Signal: "hire", Impact: 2, Confidence: 1.0},
		{SubjectID: "deal-b", Category: models.CategoryDeal, Signal: "terms_improved", Impact: 3, Confidence: 1.0},
		{SubjectID: "deal-a", Category: models.CategoryProduct, Signal: "launch", Impact: 4, Confidence: 0.5},
	}
	require.NoError(t, e.AppendEvents(ctx, inputs))

	a, err := e.GetScore(ctx, "deal-a")
	require.NoError(t, err)
	assert.Equal(t, 54, a.CurrentScore) // 50 + 2 + 2

	b, err := e.GetScore(ctx, "deal-b")
	require.NoError(t, err)
	assert.Equal(t, 63, b.CurrentScore) // 60 + 3
}

func TestEngine_BatchIsolatesSubjectFailures(t *testing.T) {
	e, m := newTestEngine(t)
	ctx := context.Background()
	seedSubject(t, m, "deal-a", [5]float64{10, 10, 10, 10, 10})

	inputs := []models.ScoreEventInput{
		{SubjectID: "deal-a", Category: models.CategoryTeam, Signal: "hire", Impact: 2, Confidence: 1.0},
		{SubjectID: "missing", Category: models.CategoryTeam, Signal: "hire", Impact: 2, Confidence: 1.0},
	}
	err := e.AppendEvents(ctx, inputs)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSubjectNotFound)

	// The valid subject was still processed.
	a, err := e.GetScore(ctx, "deal-a")
	require.NoError(t, err)
	assert.Equal(t, 52, a.CurrentScore)
}
