// Package gorm provides GORM-based database operations for dealscope.
package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/calibervc/dealscope/pkg/models"
)

// EventStore provides score-event database operations using GORM.
// Events are append-only: there is no update or delete path.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new event store.
func NewEventStore(store *Store) *EventStore {
	return &EventStore{db: store.DB}
}

// AppendEvents persists a batch of events in one transaction.
func (s *EventStore) AppendEvents(ctx context.Context, events []*models.ScoreEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*ScoreEvent, 0, len(events))
	for _, ev := range events {
		rows = append(rows, eventFromDomain(ev))
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("create events: %w", err)
	}
	return nil
}

// ListBySubject returns every event for a subject ordered by timestamp
// ascending, ties broken by insertion order.
func (s *EventStore) ListBySubject(ctx context.Context, subjectID string) ([]*models.ScoreEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, SlowQueryTimeout)
	defer cancel()

	var rows []*ScoreEvent
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp_epoch ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.ScoreEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, eventToDomain(row))
	}
	return events, nil
}

// ListPage returns a most-recent-first page of a subject's events plus the
// total count matching the query.
func (s *EventStore) ListPage(ctx context.Context, subjectID string, q models.EventQuery) ([]*models.ScoreEvent, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	query := s.db.WithContext(ctx).
		Model(&ScoreEvent{}).
		Where("subject_id = ?", subjectID)
	if q.Category != "" {
		query = query.Where("category = ?", string(q.Category))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > MaxPaginationLimit {
		limit = 50
	}

	var rows []*ScoreEvent
	err := query.
		Order("timestamp_epoch DESC, id DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	events := make([]*models.ScoreEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, eventToDomain(row))
	}
	return events, total, nil
}
